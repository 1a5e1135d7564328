package shape

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Validate checks the statements rooted at focus against a redacted shape.
// On failure it returns a non-empty trace describing every violated
// sub-constraint and a nil model; on success it returns an empty trace and
// the trimmed sub-model: exactly the statements entailed by the shape,
// always a subset of the input. Validating the trimmed model again yields
// it unchanged.
//
// Validation failures are ordinary outcomes, never errors. Reaching an
// unresolved guard is a caller contract violation and panics.
func Validate(focus graph.Value, s Shape, statements graph.Model) (*Trace, graph.Model) {
	res := check([]graph.Value{focus}, s, statements)
	if !res.trace.Empty() {
		return res.trace, nil
	}
	return res.trace, res.model
}

// outcome carries one sub-validation's diagnosis and the statements it
// entailed. The model only matters when the trace is empty.
type outcome struct {
	trace *Trace
	model graph.Model
}

// check validates the value set reached by the enclosing field against s.
// The root call wraps the focus in an implicit identity field.
func check(values []graph.Value, s Shape, model graph.Model) outcome {
	return Map(s, Probe[outcome]{
		Datatype: func(t Datatype) outcome {
			out := outcome{trace: NewTrace()}
			for _, v := range values {
				if !matchesDatatype(v, t.IRI) {
					out.trace.Issue("datatype", v)
				}
			}
			return out
		},
		Clazz: func(t Clazz) outcome {
			out := outcome{trace: NewTrace()}
			for _, v := range values {
				entailed, ok := typePath(v, t.IRI, model)
				if !ok {
					out.trace.Issue("class", v)
					continue
				}
				out.model = out.model.Union(entailed)
			}
			return out
		},
		MinExclusive: func(t MinExclusive) outcome {
			return checkOrder(values, t.Limit, "minExclusive", func(c int) bool { return c > 0 })
		},
		MaxExclusive: func(t MaxExclusive) outcome {
			return checkOrder(values, t.Limit, "maxExclusive", func(c int) bool { return c < 0 })
		},
		MinInclusive: func(t MinInclusive) outcome {
			return checkOrder(values, t.Limit, "minInclusive", func(c int) bool { return c >= 0 })
		},
		MaxInclusive: func(t MaxInclusive) outcome {
			return checkOrder(values, t.Limit, "maxInclusive", func(c int) bool { return c <= 0 })
		},
		MinLength: func(t MinLength) outcome {
			return checkText(values, "minLength", func(text string) bool {
				return utf8.RuneCountInString(text) >= t.Limit
			})
		},
		MaxLength: func(t MaxLength) outcome {
			return checkText(values, "maxLength", func(text string) bool {
				return utf8.RuneCountInString(text) <= t.Limit
			})
		},
		Pattern: func(t Pattern) outcome {
			re, err := CompilePattern(t.Expr, t.Flags)
			if err != nil {
				panic(fmt.Sprintf("shape: validating malformed pattern %q: %v", t.Expr, err))
			}
			return checkText(values, "pattern", re.MatchString)
		},
		Like: func(t Like) outcome {
			re := regexp.MustCompile("(?is)" + KeywordPattern(t.Keywords))
			return checkText(values, "like", re.MatchString)
		},
		Stem: func(t Stem) outcome {
			return checkText(values, "stem", func(text string) bool {
				return strings.HasPrefix(text, t.Prefix)
			})
		},
		MinCount: func(t MinCount) outcome {
			out := outcome{trace: NewTrace()}
			if len(values) < t.Limit {
				out.trace.Issue("minCount", values...)
			}
			return out
		},
		MaxCount: func(t MaxCount) outcome {
			out := outcome{trace: NewTrace()}
			if len(values) > t.Limit {
				out.trace.Issue("maxCount", values...)
			}
			return out
		},
		All: func(t All) outcome {
			out := outcome{trace: NewTrace()}
			for _, want := range t.Values {
				if !containsValue(values, want) {
					out.trace.Issue("all", want)
				}
			}
			return out
		},
		Any: func(t Any) outcome {
			out := outcome{trace: NewTrace()}
			for _, want := range t.Values {
				if containsValue(values, want) {
					return out
				}
			}
			out.trace.Issue("any", t.Values...)
			return out
		},
		In: func(t In) outcome {
			out := outcome{trace: NewTrace()}
			for _, v := range values {
				if !containsValue(t.Values, v) {
					out.trace.Issue("in", v)
				}
			}
			return out
		},
		Field: func(t Field) outcome {
			return checkEdge(values, t.Edge, t.Inverse, t.Shape, model)
		},
		Link: func(t Link) outcome {
			return checkEdge(values, t.Edge, false, t.Shape, model)
		},
		And: func(t And) outcome {
			out := outcome{trace: NewTrace()}
			for _, op := range t.Shapes {
				res := check(values, op, model)
				out.trace.Merge(res.trace)
				out.model = out.model.Union(res.model)
			}
			return out
		},
		Or: func(t Or) outcome {
			out := outcome{trace: NewTrace()}
			if len(t.Shapes) == 0 {
				// The canonical fail rejects every present value but
				// tolerates absence.
				if len(values) > 0 {
					out.trace.Issue("or", values...)
				}
				return out
			}
			// First succeeding operand wins; its model is the result.
			failed := make([]*Trace, 0, len(t.Shapes))
			for _, op := range t.Shapes {
				res := check(values, op, model)
				if res.trace.Empty() {
					return res
				}
				failed = append(failed, res.trace)
			}
			for _, tr := range failed {
				out.trace.Merge(tr)
			}
			return out
		},
		When: func(t When) outcome {
			// The test filters: it contributes no issues, but its entailed
			// statements join a passing result so the chosen branch
			// survives trimming.
			test := check(values, t.Test, model)
			if !test.trace.Empty() {
				return check(values, t.Fail, model)
			}
			res := check(values, t.Pass, model)
			if res.trace.Empty() {
				res.model = res.model.Union(test.model)
			}
			return res
		},
		Meta: func(Meta) outcome {
			return outcome{trace: NewTrace()}
		},
		Guard: func(t Guard) outcome {
			panic("shape: unresolved guard on axis " + t.Axis + " reached the validator")
		},
		Otherwise: func(s Shape) outcome {
			panic("shape: validator has no case for " + KindOf(s))
		},
	})
}

// checkEdge validates one edge: select the matching statements, validate
// the nested shape against the target set, and on success emit the edge
// statements plus whatever the nested shape entailed. Inverse edges trace
// under "^" + edge.
func checkEdge(values []graph.Value, edge string, inverse bool, nested Shape, model graph.Model) outcome {
	key := edge
	if inverse {
		key = "^" + edge
	}
	out := outcome{trace: NewTrace()}
	for _, focus := range values {
		stmts := model.Select(focus, edge, inverse)
		targets := model.Objects(focus, edge, inverse)
		res := check(targets, nested, model)
		if !res.trace.Empty() {
			out.trace.Sub(key, res.trace)
			continue
		}
		out.model = out.model.Union(stmts).Union(res.model)
	}
	return out
}

func checkOrder(values []graph.Value, limit graph.Value, kind string, ok func(int) bool) outcome {
	out := outcome{trace: NewTrace()}
	for _, v := range values {
		c, defined := graph.Compare(v, limit)
		if !defined || !ok(c) {
			out.trace.Issue(kind, v)
		}
	}
	return out
}

func checkText(values []graph.Value, kind string, ok func(string) bool) outcome {
	out := outcome{trace: NewTrace()}
	for _, v := range values {
		if !ok(v.Text()) {
			out.trace.Issue(kind, v)
		}
	}
	return out
}

func containsValue(values []graph.Value, v graph.Value) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// matchesDatatype checks a value against a datatype IRI or one of the
// node-kind sentinels.
func matchesDatatype(v graph.Value, iri string) bool {
	switch iri {
	case semlink.ValueTerm:
		return true
	case semlink.ResourceTerm:
		return v.IsResource()
	case semlink.IRITerm:
		return v.IsIRI()
	case semlink.BNodeTerm:
		return v.IsBNode()
	case semlink.LiteralTerm:
		return v.IsLiteral()
	default:
		return v.IsLiteral() && v.Datatype() == iri
	}
}

// typePath walks the reflexive-transitive subclass closure from v's
// declared types toward class, returning the entailing statements. The
// visited set makes subclass cycles safe.
func typePath(v graph.Value, class string, model graph.Model) (graph.Model, bool) {
	type hop struct {
		at    graph.Value
		trail graph.Model
	}
	var queue []hop
	for _, st := range model.Select(v, rdf.Type, false) {
		queue = append(queue, hop{at: st.Object, trail: graph.Model{st}})
	}
	seen := make(map[graph.Value]bool)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h.at] {
			continue
		}
		seen[h.at] = true
		if h.at.IsIRI() && h.at.Text() == class {
			return h.trail, true
		}
		for _, st := range model.Select(h.at, rdf.SubClassOf, false) {
			trail := make(graph.Model, 0, len(h.trail)+1)
			trail = append(trail, h.trail...)
			trail = append(trail, st)
			queue = append(queue, hop{at: st.Object, trail: trail})
		}
	}
	return nil, false
}
