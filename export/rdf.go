// Package export serializes resource models as RDF documents and converts
// between models and framed JSON documents.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

// Write serializes the model to the requested format. Predicates are
// resolved to absolute IRIs; statement order is preserved within each
// subject.
func Write(model graph.Model, format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return writeTurtle(model), nil
	case FormatNTriples:
		return writeNTriples(model), nil
	case FormatJSONLD:
		return writeJSONLD(model)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// writeNTriples serializes to N-Triples, one statement per line.
func writeNTriples(model graph.Model) string {
	var sb strings.Builder
	for _, st := range model {
		sb.WriteString(st.Subject.Term())
		sb.WriteString(" <")
		sb.WriteString(semlink.PredicateIRI(st.Predicate))
		sb.WriteString("> ")
		sb.WriteString(st.Object.Term())
		sb.WriteString(" .\n")
	}
	return sb.String()
}

// writeTurtle serializes to Turtle, grouping statements by subject.
func writeTurtle(model graph.Model) string {
	var sb strings.Builder

	prefixes := semlink.Prefixes()
	names := make([]string, 0, len(prefixes))
	for name := range prefixes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", name, prefixes[name]))
	}
	sb.WriteString("\n")

	for _, subject := range model.Subjects() {
		writeSubjectTurtle(&sb, subject, model)
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeSubjectTurtle writes one subject's statements as a predicate list.
func writeSubjectTurtle(sb *strings.Builder, subject graph.Value, model graph.Model) {
	sb.WriteString(subject.Term())
	sb.WriteString("\n")

	var lines []string
	for _, st := range model {
		if st.Subject != subject {
			continue
		}
		if st.Predicate == rdf.Type && st.Object.IsIRI() {
			lines = append(lines, "    a "+turtleTerm(st.Object))
			continue
		}
		lines = append(lines, "    <"+semlink.PredicateIRI(st.Predicate)+"> "+turtleTerm(st.Object))
	}

	for i, line := range lines {
		sb.WriteString(line)
		if i < len(lines)-1 {
			sb.WriteString(" ;\n")
		} else {
			sb.WriteString(" .\n")
		}
	}
}

// turtleTerm renders a value, abbreviating XSD datatypes through the
// declared xsd prefix.
func turtleTerm(v graph.Value) string {
	if v.IsLiteral() {
		if dt := v.Datatype(); dt != rdf.String && strings.HasPrefix(dt, rdf.XSD) {
			return `"` + graph.EscapeLiteral(v.Text()) + `"^^xsd:` + strings.TrimPrefix(dt, rdf.XSD)
		}
	}
	return v.Term()
}

// writeJSONLD serializes to flat JSON-LD: a @context of the registered
// prefixes and a @graph with one node per subject.
func writeJSONLD(model graph.Model) (string, error) {
	nodes := make([]map[string]any, 0)
	for _, subject := range model.Subjects() {
		node := map[string]any{"@id": nodeID(subject)}

		var order []string
		grouped := make(map[string][]graph.Value)
		var types []string
		for _, st := range model {
			if st.Subject != subject {
				continue
			}
			if st.Predicate == rdf.Type && st.Object.IsIRI() {
				types = append(types, st.Object.Text())
				continue
			}
			key := semlink.PredicateIRI(st.Predicate)
			if _, ok := grouped[key]; !ok {
				order = append(order, key)
			}
			grouped[key] = append(grouped[key], st.Object)
		}

		if len(types) == 1 {
			node["@type"] = types[0]
		} else if len(types) > 1 {
			node["@type"] = types
		}
		for _, key := range order {
			values := grouped[key]
			if len(values) == 1 {
				node[key] = values[0]
			} else {
				node[key] = values
			}
		}
		nodes = append(nodes, node)
	}

	doc := map[string]any{
		"@context": semlink.Prefixes(),
		"@graph":   nodes,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON-LD: %w", err)
	}
	return string(data) + "\n", nil
}

// nodeID renders a resource value as a JSON-LD node identifier.
func nodeID(v graph.Value) string {
	if v.IsBNode() {
		return "_:" + v.Text()
	}
	return v.Text()
}
