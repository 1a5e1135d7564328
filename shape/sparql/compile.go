package sparql

import (
	"strconv"
	"strings"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Compile emits the SPARQL graph-pattern fragment for a redacted shape
// anchored at anchor. In required mode the fragment filters: edges whose
// shapes demand presence are emitted as plain patterns, cardinality bounds
// become counting filters, and value-set constraints become FILTER
// predicates. In projection mode every edge is optional and cardinality is
// a no-op, since the retrieved set satisfies it naturally.
//
// Anchors are allocated deterministically per call, so compiling the same
// shape twice yields identical fragments, and Hook resolves to the same
// variables this compilation binds. Conditionals and unresolved guards
// must be dealt with before compiling; reaching one here panics.
func Compile(s shape.Shape, anchor Anchor, required bool) string {
	c := &compiler{scope: NewScope(), required: required}
	return c.emit(s, anchor, nil)
}

type compiler struct {
	scope    *Scope
	required bool
}

// edge is the compilation context of the field enclosing the current
// shape: cardinality constraints re-state its pattern in counting
// sub-selects.
type edge struct {
	parent  Anchor
	name    string
	inverse bool
	target  Anchor
}

func (e edge) pattern() string {
	if e.inverse {
		return e.target.Var() + " <" + e.name + "> " + e.parent.Var() + " .\n"
	}
	return e.parent.Var() + " <" + e.name + "> " + e.target.Var() + " .\n"
}

func (c *compiler) emit(s shape.Shape, at Anchor, ref *edge) string {
	return shape.Map(s, shape.Probe[string]{
		Datatype: func(t shape.Datatype) string {
			v := at.Var()
			switch t.IRI {
			case semlink.ValueTerm:
				return ""
			case semlink.ResourceTerm:
				return "FILTER ( isIRI(" + v + ") || isBlank(" + v + ") )\n"
			case semlink.IRITerm:
				return "FILTER isIRI(" + v + ")\n"
			case semlink.BNodeTerm:
				return "FILTER isBlank(" + v + ")\n"
			case semlink.LiteralTerm:
				return "FILTER isLiteral(" + v + ")\n"
			default:
				return "FILTER ( datatype(" + v + ") = <" + semlink.PredicateIRI(t.IRI) + "> )\n"
			}
		},
		Clazz: func(t shape.Clazz) string {
			return at.Var() + " <" + rdf.Type + ">/<" + rdf.SubClassOf + ">* <" + semlink.PredicateIRI(t.IRI) + "> .\n"
		},
		MinExclusive: func(t shape.MinExclusive) string {
			return orderFilter(at, ">", t.Limit)
		},
		MaxExclusive: func(t shape.MaxExclusive) string {
			return orderFilter(at, "<", t.Limit)
		},
		MinInclusive: func(t shape.MinInclusive) string {
			return orderFilter(at, ">=", t.Limit)
		},
		MaxInclusive: func(t shape.MaxInclusive) string {
			return orderFilter(at, "<=", t.Limit)
		},
		MinLength: func(t shape.MinLength) string {
			return "FILTER ( STRLEN(STR(" + at.Var() + ")) >= " + strconv.Itoa(t.Limit) + " )\n"
		},
		MaxLength: func(t shape.MaxLength) string {
			return "FILTER ( STRLEN(STR(" + at.Var() + ")) <= " + strconv.Itoa(t.Limit) + " )\n"
		},
		Pattern: func(t shape.Pattern) string {
			return regexFilter(at, t.Expr, t.Flags)
		},
		Like: func(t shape.Like) string {
			return regexFilter(at, shape.KeywordPattern(t.Keywords), "is")
		},
		Stem: func(t shape.Stem) string {
			return "FILTER STRSTARTS(STR(" + at.Var() + "), \"" + graph.EscapeLiteral(t.Prefix) + "\")\n"
		},
		MinCount: func(t shape.MinCount) string {
			// A bound of one is enforced by the enclosing field's required
			// pattern; higher bounds need a counting sub-select.
			if !c.required || ref == nil || t.Limit <= 1 {
				return ""
			}
			return c.countFilter(*ref, ">=", t.Limit)
		},
		MaxCount: func(t shape.MaxCount) string {
			if !c.required || ref == nil {
				return ""
			}
			if t.Limit == 0 {
				return "FILTER NOT EXISTS {\n" + indent(ref.pattern()) + "}\n"
			}
			return c.countFilter(*ref, "<=", t.Limit)
		},
		All: func(t shape.All) string {
			if !c.required || len(t.Values) == 0 {
				return ""
			}
			var b strings.Builder
			for _, v := range t.Values {
				if ref == nil {
					b.WriteString("FILTER ( " + at.Var() + " = " + v.Term() + " )\n")
					continue
				}
				if ref.inverse {
					b.WriteString(v.Term() + " <" + ref.name + "> " + ref.parent.Var() + " .\n")
				} else {
					b.WriteString(ref.parent.Var() + " <" + ref.name + "> " + v.Term() + " .\n")
				}
			}
			return b.String()
		},
		Any: func(t shape.Any) string {
			return c.setFilter(at, t.Values)
		},
		In: func(t shape.In) string {
			return c.setFilter(at, t.Values)
		},
		Field: func(t shape.Field) string {
			return c.field(t.Edge, t.Inverse, t.Shape, at)
		},
		Link: func(t shape.Link) string {
			return c.field(t.Edge, false, t.Shape, at)
		},
		And: func(t shape.And) string {
			var b strings.Builder
			for _, op := range t.Shapes {
				b.WriteString(c.emit(op, at, ref))
			}
			return b.String()
		},
		Or: func(t shape.Or) string {
			if len(t.Shapes) == 0 {
				return "FILTER ( false )\n"
			}
			groups := make([]string, len(t.Shapes))
			for i, op := range t.Shapes {
				groups[i] = "{\n" + indent(c.emit(op, at, ref)) + "}"
			}
			return strings.Join(groups, " UNION ") + "\n"
		},
		Meta: func(shape.Meta) string { return "" },
		When: func(shape.When) string {
			panic("sparql: conditional shape reached the tree probe")
		},
		Guard: func(t shape.Guard) string {
			panic("sparql: unresolved guard on axis " + t.Axis + " reached the tree probe")
		},
		Otherwise: func(s shape.Shape) string {
			panic("sparql: tree probe has no case for " + shape.KindOf(s))
		},
	})
}

// field emits one edge: allocate the target anchor, then wrap the edge
// pattern and the nested fragment per mode. A nested disjunction is pushed
// inside the union so each branch keeps independent optionality; a nested
// constant fail prohibits the edge outright.
func (c *compiler) field(name string, inverse bool, nested shape.Shape, parent Anchor) string {
	var target Anchor
	if inverse {
		target = c.scope.Inverse()
	} else {
		target = c.scope.Forward()
	}
	ref := edge{parent: parent, name: semlink.PredicateIRI(name), inverse: inverse, target: target}

	if shape.Fail(nested) {
		if c.required {
			return "FILTER NOT EXISTS {\n" + indent(ref.pattern()) + "}\n"
		}
		return ""
	}

	demanded := c.required && minPresence(nested) >= 1

	if o, ok := nested.(shape.Or); ok && len(o.Shapes) > 0 {
		if demanded {
			groups := make([]string, len(o.Shapes))
			for i, op := range o.Shapes {
				groups[i] = "{\n" + indent(c.emit(op, target, &ref)) + "}"
			}
			return ref.pattern() + strings.Join(groups, " UNION ") + "\n"
		}
		var b strings.Builder
		for _, op := range o.Shapes {
			b.WriteString("OPTIONAL {\n" + indent(ref.pattern()+c.emit(op, target, &ref)) + "}\n")
		}
		return b.String()
	}

	body := ref.pattern() + c.emit(nested, target, &ref)
	if demanded {
		return body
	}
	return "OPTIONAL {\n" + indent(body) + "}\n"
}

// countFilter restates the enclosing edge in a grouped sub-select bounding
// the per-parent target count.
func (c *compiler) countFilter(ref edge, op string, n int) string {
	cv := c.scope.Count()
	counted := edge{parent: ref.parent, name: ref.name, inverse: ref.inverse, target: cv}
	body := "SELECT " + ref.parent.Var() + "\nWHERE {\n" + indent(counted.pattern()) + "}\n" +
		"GROUP BY " + ref.parent.Var() + "\n" +
		"HAVING ( COUNT(DISTINCT " + cv.Var() + ") " + op + " " + strconv.Itoa(n) + " )\n"
	return "{\n" + indent(body) + "}\n"
}

func (c *compiler) setFilter(at Anchor, values []graph.Value) string {
	if !c.required {
		return ""
	}
	if len(values) == 0 {
		return "FILTER ( false )\n"
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = v.Term()
	}
	return "FILTER ( " + at.Var() + " IN (" + strings.Join(terms, ", ") + ") )\n"
}

func orderFilter(at Anchor, op string, limit graph.Value) string {
	return "FILTER ( " + at.Var() + " " + op + " " + limit.Term() + " )\n"
}

func regexFilter(at Anchor, expr, flags string) string {
	out := "FILTER REGEX(STR(" + at.Var() + "), \"" + graph.EscapeLiteral(expr) + "\""
	if flags != "" {
		out += ", \"" + flags + "\""
	}
	return out + ")\n"
}

// minPresence is the smallest number of edge targets a nested shape
// demands, used to decide whether the enclosing field stays optional.
func minPresence(s shape.Shape) int {
	return shape.Map(s, shape.Probe[int]{
		MinCount: func(t shape.MinCount) int { return t.Limit },
		All:      func(t shape.All) int { return len(t.Values) },
		Any: func(t shape.Any) int {
			if len(t.Values) > 0 {
				return 1
			}
			return 0
		},
		And: func(t shape.And) int {
			max := 0
			for _, op := range t.Shapes {
				if n := minPresence(op); n > max {
					max = n
				}
			}
			return max
		},
		Or: func(t shape.Or) int {
			if len(t.Shapes) == 0 {
				return 0
			}
			min := minPresence(t.Shapes[0])
			for _, op := range t.Shapes[1:] {
				if n := minPresence(op); n < min {
					min = n
				}
			}
			return min
		},
		When: func(t shape.When) int {
			p, f := minPresence(t.Pass), minPresence(t.Fail)
			if f < p {
				return f
			}
			return p
		},
		Otherwise: func(shape.Shape) int { return 0 },
	})
}

func indent(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
