package shape

import (
	"encoding/json"

	"github.com/c360studio/semlink/graph"
)

// Trace is the diagnosis of one validation call: issue kinds mapped to the
// offending values at this node, plus nested traces mirroring the shape's
// field structure. Inverse fields nest under "^" + edge. A trace is empty
// exactly when validation succeeded; an issue key with no offenders (a
// missing required edge, say) still counts as an issue.
//
// Traces are built bottom-up during one validation call and are not safe
// for concurrent mutation.
type Trace struct {
	Issues map[string][]graph.Value
	Fields map[string]*Trace
}

// NewTrace returns an empty trace.
func NewTrace() *Trace { return &Trace{} }

// Empty reports whether the trace records no issues anywhere.
func (t *Trace) Empty() bool {
	if t == nil {
		return true
	}
	if len(t.Issues) > 0 {
		return false
	}
	for _, sub := range t.Fields {
		if !sub.Empty() {
			return false
		}
	}
	return true
}

// Issue records offenders under an issue kind. Recording a kind with no
// offenders marks the issue as present with an empty value set.
func (t *Trace) Issue(kind string, offenders ...graph.Value) {
	if t.Issues == nil {
		t.Issues = make(map[string][]graph.Value)
	}
	t.Issues[kind] = appendValues(t.Issues[kind], offenders)
}

// Sub merges a nested trace under a field name, deep-merging with any
// trace already recorded there. Empty sub-traces are ignored. The trace
// takes ownership of sub.
func (t *Trace) Sub(field string, sub *Trace) {
	if sub.Empty() {
		return
	}
	if t.Fields == nil {
		t.Fields = make(map[string]*Trace)
	}
	if existing, ok := t.Fields[field]; ok {
		existing.Merge(sub)
		return
	}
	t.Fields[field] = sub
}

// Merge folds other into t: issue offender sets union per kind and
// per-field sub-traces deep-merge. The trace takes ownership of other's
// sub-traces.
func (t *Trace) Merge(other *Trace) {
	if other == nil {
		return
	}
	for kind, vals := range other.Issues {
		if t.Issues == nil {
			t.Issues = make(map[string][]graph.Value)
		}
		t.Issues[kind] = appendValues(t.Issues[kind], vals)
	}
	for field, sub := range other.Fields {
		t.Sub(field, sub)
	}
}

func appendValues(dst []graph.Value, add []graph.Value) []graph.Value {
	if dst == nil {
		dst = []graph.Value{}
	}
	for _, v := range add {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

type traceWire struct {
	Issues map[string][]graph.Value `json:"issues,omitempty"`
	Fields map[string]*Trace        `json:"fields,omitempty"`
}

// MarshalJSON renders the trace with issue kinds as keys and nested
// per-field sub-traces. An empty trace renders as {}.
func (t *Trace) MarshalJSON() ([]byte, error) {
	return json.Marshal(traceWire{Issues: t.Issues, Fields: t.Fields})
}

// UnmarshalJSON decodes a trace previously rendered by MarshalJSON.
func (t *Trace) UnmarshalJSON(data []byte) error {
	var wire traceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Issues = wire.Issues
	t.Fields = wire.Fields
	return nil
}

// String renders the trace as compact JSON for logs and error messages.
func (t *Trace) String() string {
	data, err := json.Marshal(t)
	if err != nil {
		return "{}"
	}
	return string(data)
}
