package shape

// verdict is the evaluator's three-valued outcome for a shape considered
// against an arbitrary present candidate: never rejects, always rejects,
// or depends on data.
type verdict int8

const (
	verdictOpen verdict = iota
	verdictPass
	verdictFail
)

// evaluate statically resolves a shape's verdict where one exists.
// Conjunctions fail if any operand fails and disjunctions only if every
// operand fails, so the empty conjunction never rejects and the empty
// disjunction always does. Cardinality and value-set leaves with empty
// domains resolve statically; kinds whose outcome depends on data,
// including unresolved guards, stay open.
func evaluate(s Shape) verdict {
	return Map(s, Probe[verdict]{
		MinCount: func(t MinCount) verdict {
			if t.Limit == 0 {
				return verdictPass
			}
			return verdictOpen
		},
		MaxCount: func(t MaxCount) verdict {
			if t.Limit == 0 {
				return verdictFail
			}
			return verdictOpen
		},
		All: func(t All) verdict {
			if len(t.Values) == 0 {
				return verdictPass
			}
			return verdictOpen
		},
		Any: func(t Any) verdict {
			if len(t.Values) == 0 {
				return verdictFail
			}
			return verdictOpen
		},
		In: func(t In) verdict {
			if len(t.Values) == 0 {
				return verdictFail
			}
			return verdictOpen
		},
		Meta: func(Meta) verdict { return verdictPass },
		And: func(t And) verdict {
			out := verdictPass
			for _, op := range t.Shapes {
				switch evaluate(op) {
				case verdictFail:
					return verdictFail
				case verdictOpen:
					out = verdictOpen
				}
			}
			return out
		},
		Or: func(t Or) verdict {
			out := verdictFail
			for _, op := range t.Shapes {
				switch evaluate(op) {
				case verdictPass:
					return verdictPass
				case verdictOpen:
					out = verdictOpen
				}
			}
			return out
		},
		When: func(t When) verdict {
			switch evaluate(t.Test) {
			case verdictPass:
				return evaluate(t.Pass)
			case verdictFail:
				return evaluate(t.Fail)
			default:
				if p, f := evaluate(t.Pass), evaluate(t.Fail); p == f {
					return p
				}
				return verdictOpen
			}
		},
		Otherwise: func(Shape) verdict { return verdictOpen },
	})
}

// Pass reports whether s is the constant pass shape: structurally the
// empty conjunction, after stripping non-constraining annotations.
func Pass(s Shape) bool {
	switch t := s.(type) {
	case Meta:
		return true
	case And:
		for _, op := range t.Shapes {
			if !Pass(op) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Fail reports whether s rejects every candidate regardless of data.
func Fail(s Shape) bool { return evaluate(s) == verdictFail }

// Empty reports whether s is a constant pass or a constant fail.
func Empty(s Shape) bool { return Pass(s) || Fail(s) }
