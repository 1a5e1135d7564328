package shape

// Redact resolves every Guard on the given axis: guards whose tokens
// intersect the supplied tokens become the canonical pass, the rest become
// the canonical fail, and guards on other axes are left untouched. The
// construction rules re-apply on the way back up, so guarded branches
// collapse out of conjunctions and disjunctions immediately. Supplying no
// tokens deactivates every guard on the axis.
//
// A shape is ready for compilation or validation only once every axis it
// guards on has been redacted.
func Redact(s Shape, axis string, tokens ...string) Shape {
	return Map(s, Probe[Shape]{
		Guard: func(t Guard) Shape {
			if t.Axis != axis {
				return t
			}
			if intersects(t.Tokens, tokens) {
				return And{}
			}
			return Or{}
		},
		Field: func(t Field) Shape {
			return Field{Edge: t.Edge, Inverse: t.Inverse, Shape: Redact(t.Shape, axis, tokens...)}
		},
		Link: func(t Link) Shape {
			return Link{Edge: t.Edge, Shape: Redact(t.Shape, axis, tokens...)}
		},
		And: func(t And) Shape {
			return NewAnd(redactAll(t.Shapes, axis, tokens)...)
		},
		Or: func(t Or) Shape {
			return NewOr(redactAll(t.Shapes, axis, tokens)...)
		},
		When: func(t When) Shape {
			return NewWhen(
				Redact(t.Test, axis, tokens...),
				Redact(t.Pass, axis, tokens...),
				Redact(t.Fail, axis, tokens...),
			)
		},
		Otherwise: func(s Shape) Shape { return s },
	})
}

func redactAll(shapes []Shape, axis string, tokens []string) []Shape {
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = Redact(s, axis, tokens...)
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
