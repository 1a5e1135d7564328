package graphquery

import (
	"strings"
	"testing"
	"time"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/storage"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

const (
	personClass = semlink.Namespace + "Person"
	nameEdge    = semlink.Namespace + "name"
	emailEdge   = semlink.Namespace + "email"
)

// personShape requires the person class, a name, and shows email only to
// the detail view.
func personShape() shape.Shape {
	return shape.NewAnd(
		shape.NewClazz(personClass),
		shape.NewField(nameEdge, shape.NewMinCount(1)),
		shape.NewField(emailEdge, shape.NewGuard(storage.AxisView, "detail")),
	)
}

// newTestComponent returns a Component with the person schema registered
// and an empty cache.
func newTestComponent(t *testing.T) *Component {
	t.Helper()
	registry := schema.NewRegistry()
	if err := registry.Register(schema.Definition{Name: "person", Class: personClass, Shape: personShape()}); err != nil {
		t.Fatalf("register person schema: %v", err)
	}
	return &Component{
		name:      "graph-query",
		config:    Config{MaxResults: 100},
		registry:  registry,
		resources: make(map[string]*cachedResource),
		bySchema:  make(map[string][]string),
	}
}

// cachePerson adds a person resource to the component's cache.
func cachePerson(c *Component, id, name string) {
	subject := graph.ResourceIRI(id)
	c.cacheResource(&graph.ResourcePayload{
		ResourceID_: id,
		SchemaName:  "person",
		Statements: graph.Model{
			graph.NewStatement(subject, rdf.Type, graph.NewIRI(personClass)),
			graph.NewStatement(subject, nameEdge, graph.NewString(name)),
		},
		UpdatedAt: time.Now(),
	})
}

func TestQueryResource(t *testing.T) {
	c := newTestComponent(t)
	cachePerson(c, "person.1", "Ada")

	req := &Request{RequestID: "r1", Type: QueryResource, ResourceID: "person.1", IncludeModel: true}
	resp := c.executeQuery(req)

	if !resp.Success {
		t.Fatalf("query failed: %s", resp.Error)
	}
	if len(resp.Resources) != 1 {
		t.Fatalf("Resources count = %d, want 1", len(resp.Resources))
	}
	if resp.Resources[0].Schema != "person" {
		t.Errorf("Schema = %q, want person", resp.Resources[0].Schema)
	}
	if len(resp.Resources[0].Statements) == 0 {
		t.Error("expected statements with IncludeModel")
	}
}

func TestQueryResourceNotFound(t *testing.T) {
	c := newTestComponent(t)

	resp := c.executeQuery(&Request{RequestID: "r1", Type: QueryResource, ResourceID: "person.missing"})
	if resp.Success {
		t.Error("expected failure for a missing resource")
	}
	if resp.Error != "resource not found" {
		t.Errorf("Error = %q, want resource not found", resp.Error)
	}
}

func TestQueryBrowse(t *testing.T) {
	c := newTestComponent(t)
	cachePerson(c, "person.a", "Ada")
	cachePerson(c, "person.b", "Grace")

	// A resource that fails its shape stays out of browse results.
	subject := graph.ResourceIRI("person.c")
	c.cacheResource(&graph.ResourcePayload{
		ResourceID_: "person.c",
		SchemaName:  "person",
		Statements: graph.Model{
			graph.NewStatement(subject, rdf.Type, graph.NewIRI(personClass)),
		},
		UpdatedAt: time.Now(),
	})

	resp := c.executeQuery(&Request{RequestID: "r1", Type: QueryBrowse, Schema: "person"})
	if !resp.Success {
		t.Fatalf("browse failed: %s", resp.Error)
	}
	if resp.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", resp.TotalCount)
	}
	if len(resp.Resources) != 2 {
		t.Fatalf("Resources count = %d, want 2", len(resp.Resources))
	}
	if resp.Resources[0].ID != "person.a" || resp.Resources[1].ID != "person.b" {
		t.Errorf("ids = %q, %q; want person.a, person.b", resp.Resources[0].ID, resp.Resources[1].ID)
	}
	if !strings.HasPrefix(resp.Query, "SELECT DISTINCT ?this WHERE {") {
		t.Errorf("Query head = %q", resp.Query)
	}
	if !strings.Contains(resp.Query, personClass) {
		t.Errorf("Query does not constrain the class: %s", resp.Query)
	}
}

func TestQueryBrowseUnknownSchema(t *testing.T) {
	c := newTestComponent(t)

	resp := c.executeQuery(&Request{RequestID: "r1", Type: QueryBrowse, Schema: "ghost"})
	if resp.Success {
		t.Error("expected failure for an unknown schema")
	}
	if !strings.Contains(resp.Error, "unknown schema") {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestQueryCompilePath(t *testing.T) {
	c := newTestComponent(t)

	req := &Request{RequestID: "r1", Type: QueryCompile, Schema: "person", Path: []string{nameEdge}}
	resp := c.executeQuery(req)

	if !resp.Success {
		t.Fatalf("compile failed: %s", resp.Error)
	}
	if resp.Query == "" {
		t.Fatal("expected compiled query text")
	}
	if resp.Anchor != "?v1" {
		t.Errorf("Anchor = %q, want ?v1", resp.Anchor)
	}
}

func TestQueryCompileUnknownPath(t *testing.T) {
	c := newTestComponent(t)

	req := &Request{RequestID: "r1", Type: QueryCompile, Schema: "person", Path: []string{"nonsense"}}
	resp := c.executeQuery(req)

	if resp.Success {
		t.Error("expected failure for an undeclared path step")
	}
	if !strings.Contains(resp.Error, "unknown path step") {
		t.Errorf("Error = %q", resp.Error)
	}
}

// Without the detail view the guarded email field redacts to a constant
// fail, which compiles to a prohibition; with it the field is optional.
func TestQueryCompileViewTokens(t *testing.T) {
	c := newTestComponent(t)

	base := c.executeQuery(&Request{RequestID: "r1", Type: QueryCompile, Schema: "person"})
	detail := c.executeQuery(&Request{RequestID: "r2", Type: QueryCompile, Schema: "person", Views: []string{"detail"}})

	if !base.Success || !detail.Success {
		t.Fatalf("compile failed: %s / %s", base.Error, detail.Error)
	}
	if !strings.Contains(base.Query, "FILTER NOT EXISTS") {
		t.Errorf("base query should prohibit the hidden field: %s", base.Query)
	}
	if strings.Contains(detail.Query, "FILTER NOT EXISTS") {
		t.Errorf("detail query should not prohibit the email field: %s", detail.Query)
	}
	if !strings.Contains(detail.Query, "OPTIONAL") {
		t.Errorf("detail query should keep the email field optional: %s", detail.Query)
	}
}

func TestQuerySearch(t *testing.T) {
	c := newTestComponent(t)
	cachePerson(c, "person.a", "Ada Lovelace")
	cachePerson(c, "person.b", "Grace Hopper")

	resp := c.executeQuery(&Request{RequestID: "r1", Type: QuerySearch, SearchText: "lovelace"})
	if !resp.Success {
		t.Fatalf("search failed: %s", resp.Error)
	}
	if resp.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", resp.TotalCount)
	}
	if resp.Resources[0].ID != "person.a" {
		t.Errorf("ID = %q, want person.a", resp.Resources[0].ID)
	}
}

func TestQueryUnknownType(t *testing.T) {
	c := newTestComponent(t)

	resp := c.executeQuery(&Request{RequestID: "r1", Type: QueryType("bogus")})
	if resp.Success {
		t.Error("expected failure for an unknown query type")
	}
	if !strings.Contains(resp.Error, "unknown query type") {
		t.Errorf("Error = %q", resp.Error)
	}
}
