package export_test

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/semlink/export"
	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

const knowsEdge = semlink.Namespace + "knows"

func TestFrame(t *testing.T) {
	subject, model := personModel()
	doc := export.Frame(subject, model)

	if doc["@id"] != personIRI {
		t.Errorf("unexpected @id: %v", doc["@id"])
	}
	if doc["@type"] != personClass {
		t.Errorf("unexpected @type: %v", doc["@type"])
	}
	if doc[nameEdge] != graph.NewString("Ada Lovelace") {
		t.Errorf("unexpected name: %v", doc[nameEdge])
	}
	if doc[ageEdge] != graph.NewInteger(36) {
		t.Errorf("unexpected age: %v", doc[ageEdge])
	}

	address, ok := doc[addressEdge].(map[string]any)
	if !ok {
		t.Fatalf("expected nested address node, got %T", doc[addressEdge])
	}
	if address["@id"] != "_:addr" {
		t.Errorf("unexpected nested id: %v", address["@id"])
	}
	if address[cityEdge] != graph.NewString("London") {
		t.Errorf("unexpected city: %v", address[cityEdge])
	}
}

func TestFrameMultiValued(t *testing.T) {
	subject := graph.NewIRI(personIRI)
	model := graph.Model{
		graph.NewStatement(subject, nameEdge, graph.NewString("Ada")),
		graph.NewStatement(subject, nameEdge, graph.NewString("Countess of Lovelace")),
	}

	doc := export.Frame(subject, model)
	names, ok := doc[nameEdge].([]any)
	if !ok {
		t.Fatalf("expected a list for repeated predicate, got %T", doc[nameEdge])
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	if names[0] != graph.NewString("Ada") || names[1] != graph.NewString("Countess of Lovelace") {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestFrameCycle(t *testing.T) {
	a := graph.NewIRI("https://semlink.dev/resource/person.a")
	b := graph.NewIRI("https://semlink.dev/resource/person.b")
	model := graph.Model{
		graph.NewStatement(a, knowsEdge, b),
		graph.NewStatement(b, knowsEdge, a),
	}

	doc := export.Frame(a, model)

	nested, ok := doc[knowsEdge].(map[string]any)
	if !ok {
		t.Fatalf("expected nested node for b, got %T", doc[knowsEdge])
	}
	if nested["@id"] != b.Text() {
		t.Errorf("unexpected nested id: %v", nested["@id"])
	}

	back, ok := nested[knowsEdge].(graph.Value)
	if !ok {
		t.Fatalf("expected back-reference value, got %T", nested[knowsEdge])
	}
	if back != a {
		t.Errorf("expected back-reference to a, got %v", back)
	}

	if _, ok := doc["@reverse"]; ok {
		t.Error("expected no @reverse once the cycle is rendered forward")
	}
}

func TestFrameReverse(t *testing.T) {
	product := graph.NewIRI("https://semlink.dev/resource/product.1")
	review := graph.NewIRI("https://semlink.dev/resource/review.1")
	aboutEdge := semlink.Namespace + "about"
	ratingEdge := semlink.Namespace + "rating"
	model := graph.Model{
		graph.NewStatement(review, aboutEdge, product),
		graph.NewStatement(review, ratingEdge, graph.NewInteger(5)),
	}

	doc := export.Frame(product, model)

	reverse, ok := doc["@reverse"].(map[string]any)
	if !ok {
		t.Fatalf("expected @reverse block, got %T", doc["@reverse"])
	}
	node, ok := reverse[aboutEdge].(map[string]any)
	if !ok {
		t.Fatalf("expected reverse node, got %T", reverse[aboutEdge])
	}
	if node["@id"] != review.Text() {
		t.Errorf("unexpected reverse subject: %v", node["@id"])
	}
	if node[ratingEdge] != graph.NewInteger(5) {
		t.Errorf("expected the reverse node expanded with its fields: %v", node)
	}
}

func TestUnframe(t *testing.T) {
	data := []byte(`{
		"@context": {
			"ex": "https://example.org/",
			"name": "https://semlink.dev/ontology/name"
		},
		"@id": "https://semlink.dev/resource/person.1",
		"@type": "https://semlink.dev/ontology/Person",
		"name": "Ada",
		"ex:age": 36,
		"rdfs:label": "Ada L.",
		"graph.resource.schema": "person",
		"https://semlink.dev/ontology/address": {"https://semlink.dev/ontology/city": "London"}
	}`)

	focus, model, err := export.Unframe(data)
	if err != nil {
		t.Fatalf("Unframe failed: %v", err)
	}

	if focus != graph.NewIRI(personIRI) {
		t.Errorf("unexpected focus: %v", focus)
	}

	expect := []graph.Statement{
		graph.NewStatement(focus, rdf.Type, graph.NewIRI(personClass)),
		graph.NewStatement(focus, nameEdge, graph.NewString("Ada")),
		graph.NewStatement(focus, "https://example.org/age", graph.NewInteger(36)),
		graph.NewStatement(focus, rdf.Label, graph.NewString("Ada L.")),
		graph.NewStatement(focus, "graph.resource.schema", graph.NewString("person")),
	}
	for _, st := range expect {
		if !model.Contains(st) {
			t.Errorf("missing statement: %v %s %v", st.Subject, st.Predicate, st.Object)
		}
	}

	var address graph.Value
	for _, st := range model {
		if st.Predicate == addressEdge {
			address = st.Object
		}
	}
	if !address.IsBNode() {
		t.Fatalf("expected minted blank node for anonymous branch, got %v", address)
	}
	if !model.Contains(graph.NewStatement(address, cityEdge, graph.NewString("London"))) {
		t.Error("missing nested city statement")
	}
}

func TestUnframeReverse(t *testing.T) {
	authorEdge := semlink.Namespace + "author"
	data := []byte(`{
		"@id": "https://semlink.dev/resource/post.1",
		"@reverse": {
			"https://semlink.dev/ontology/author": {
				"@id": "https://semlink.dev/resource/person.1",
				"https://semlink.dev/ontology/name": "Ada"
			}
		}
	}`)

	focus, model, err := export.Unframe(data)
	if err != nil {
		t.Fatalf("Unframe failed: %v", err)
	}

	person := graph.NewIRI(personIRI)
	if !model.Contains(graph.NewStatement(person, authorEdge, focus)) {
		t.Error("expected reverse statement pointing at the focus")
	}
	if !model.Contains(graph.NewStatement(person, nameEdge, graph.NewString("Ada"))) {
		t.Error("expected the reverse node's own statements")
	}
}

func TestUnframeErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not an object", `["a"]`},
		{"invalid json", `{`},
		{"context not an object", `{"@context": "x"}`},
		{"context entry not a string", `{"@context": {"ex": 1}}`},
		{"empty id", `{"@id": ""}`},
		{"type not a string", `{"@type": 7}`},
		{"null value", `{"name": null}`},
		{"reverse not an object", `{"@reverse": "x"}`},
		{"reverse value not a node", `{"@reverse": {"author": "x"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := export.Unframe([]byte(tc.data)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestFrameUnframeRoundTrip(t *testing.T) {
	subject, model := personModel()

	doc := export.Frame(subject, model)
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal framed doc: %v", err)
	}

	focus, recovered, err := export.Unframe(data)
	if err != nil {
		t.Fatalf("Unframe failed: %v", err)
	}

	if focus != subject {
		t.Errorf("unexpected focus: %v", focus)
	}
	if !model.SubsetOf(recovered) || !recovered.SubsetOf(model) {
		t.Errorf("round trip changed the model:\n got %v\nwant %v", recovered, model)
	}
}

func TestFrameUnframeCycleRoundTrip(t *testing.T) {
	a := graph.NewIRI("https://semlink.dev/resource/person.a")
	b := graph.NewIRI("https://semlink.dev/resource/person.b")
	model := graph.Model{
		graph.NewStatement(a, knowsEdge, b),
		graph.NewStatement(b, knowsEdge, a),
	}

	data, err := json.Marshal(export.Frame(a, model))
	if err != nil {
		t.Fatalf("marshal framed doc: %v", err)
	}
	_, recovered, err := export.Unframe(data)
	if err != nil {
		t.Fatalf("Unframe failed: %v", err)
	}
	if !model.SubsetOf(recovered) || !recovered.SubsetOf(model) {
		t.Errorf("cycle round trip changed the model:\n got %v\nwant %v", recovered, model)
	}
}
