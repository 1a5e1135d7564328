package export

import (
	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
)

// Frame renders the model as a nested document rooted at focus. Resource
// values expand into nested nodes when the model describes them; nodes on
// the path back to an ancestor stay as {"@id": …} references, so cyclic
// models frame without recursing forever. Statements whose object is the
// node and that no forward branch already rendered appear under
// "@reverse". Leaf values are graph.Value and marshal in JSON-LD object
// form.
func Frame(focus graph.Value, model graph.Model) map[string]any {
	f := &framer{
		model:    model,
		visiting: make(map[graph.Value]bool),
		emitted:  make(map[graph.Statement]bool),
	}
	return f.node(focus)
}

// framer tracks one traversal: visiting guards cycles, emitted guarantees
// every statement is rendered at most once.
type framer struct {
	model    graph.Model
	visiting map[graph.Value]bool
	emitted  map[graph.Statement]bool
}

func (f *framer) node(focus graph.Value) map[string]any {
	f.visiting[focus] = true
	defer delete(f.visiting, focus)

	node := map[string]any{"@id": nodeID(focus)}

	var order []string
	grouped := make(map[string][]any)
	var types []string
	for _, st := range f.model {
		if st.Subject != focus || f.emitted[st] {
			continue
		}
		f.emitted[st] = true
		if st.Predicate == rdf.Type && st.Object.IsIRI() {
			types = append(types, st.Object.Text())
			continue
		}
		if _, ok := grouped[st.Predicate]; !ok {
			order = append(order, st.Predicate)
		}
		grouped[st.Predicate] = append(grouped[st.Predicate], f.value(st.Object))
	}

	if len(types) == 1 {
		node["@type"] = types[0]
	} else if len(types) > 1 {
		node["@type"] = types
	}
	for _, pred := range order {
		values := grouped[pred]
		if len(values) == 1 {
			node[pred] = values[0]
		} else {
			node[pred] = values
		}
	}

	if reverse := f.reverse(focus); len(reverse) > 0 {
		node["@reverse"] = reverse
	}
	return node
}

// value renders one object: nested node for described resources, the bare
// value otherwise. Values on the visiting path marshal as {"@id": …}.
func (f *framer) value(v graph.Value) any {
	if v.IsResource() && !f.visiting[v] && f.describes(v) {
		return f.node(v)
	}
	return v
}

// reverse collects statements pointing at focus that no forward branch
// rendered, keyed by predicate.
func (f *framer) reverse(focus graph.Value) map[string]any {
	var order []string
	grouped := make(map[string][]any)
	for _, st := range f.model {
		if st.Object != focus || f.emitted[st] || f.visiting[st.Subject] {
			continue
		}
		f.emitted[st] = true
		if _, ok := grouped[st.Predicate]; !ok {
			order = append(order, st.Predicate)
		}
		grouped[st.Predicate] = append(grouped[st.Predicate], f.value(st.Subject))
	}

	if len(order) == 0 {
		return nil
	}
	out := make(map[string]any, len(order))
	for _, pred := range order {
		values := grouped[pred]
		if len(values) == 1 {
			out[pred] = values[0]
		} else {
			out[pred] = values
		}
	}
	return out
}

// describes reports whether the model holds statements about v.
func (f *framer) describes(v graph.Value) bool {
	for _, st := range f.model {
		if st.Subject == v {
			return true
		}
	}
	return false
}
