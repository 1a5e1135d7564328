package shape

// Probe holds one case function per shape kind plus an Otherwise fallback.
// Map dispatches a shape to its case, so algorithms over the algebra are
// written as probes instead of scattered type switches: the evaluator,
// redactor, validator, and the sparql compiler probes all go through Map.
//
// Cases left nil fall through to Otherwise. A probe that must reject a
// kind outright (the compiler on an unresolved Guard, for instance) leaves
// the case nil and panics in Otherwise, or installs a panicking case.
type Probe[T any] struct {
	Datatype     func(Datatype) T
	Clazz        func(Clazz) T
	MinExclusive func(MinExclusive) T
	MaxExclusive func(MaxExclusive) T
	MinInclusive func(MinInclusive) T
	MaxInclusive func(MaxInclusive) T
	MinLength    func(MinLength) T
	MaxLength    func(MaxLength) T
	Pattern      func(Pattern) T
	Like         func(Like) T
	Stem         func(Stem) T
	MinCount     func(MinCount) T
	MaxCount     func(MaxCount) T
	All          func(All) T
	Any          func(Any) T
	In           func(In) T
	Field        func(Field) T
	Link         func(Link) T
	And          func(And) T
	Or           func(Or) T
	When         func(When) T
	Guard        func(Guard) T
	Meta         func(Meta) T

	// Otherwise handles kinds without an installed case.
	Otherwise func(Shape) T
}

// Map dispatches s to the probe case for its kind, falling back to
// Otherwise. It panics on a nil shape or when neither a case nor an
// Otherwise fallback is installed for the kind: both indicate a broken
// caller contract, not a data error.
func Map[T any](s Shape, p Probe[T]) T {
	if s == nil {
		panic("shape: cannot probe a nil shape")
	}
	switch t := s.(type) {
	case Datatype:
		if p.Datatype != nil {
			return p.Datatype(t)
		}
	case Clazz:
		if p.Clazz != nil {
			return p.Clazz(t)
		}
	case MinExclusive:
		if p.MinExclusive != nil {
			return p.MinExclusive(t)
		}
	case MaxExclusive:
		if p.MaxExclusive != nil {
			return p.MaxExclusive(t)
		}
	case MinInclusive:
		if p.MinInclusive != nil {
			return p.MinInclusive(t)
		}
	case MaxInclusive:
		if p.MaxInclusive != nil {
			return p.MaxInclusive(t)
		}
	case MinLength:
		if p.MinLength != nil {
			return p.MinLength(t)
		}
	case MaxLength:
		if p.MaxLength != nil {
			return p.MaxLength(t)
		}
	case Pattern:
		if p.Pattern != nil {
			return p.Pattern(t)
		}
	case Like:
		if p.Like != nil {
			return p.Like(t)
		}
	case Stem:
		if p.Stem != nil {
			return p.Stem(t)
		}
	case MinCount:
		if p.MinCount != nil {
			return p.MinCount(t)
		}
	case MaxCount:
		if p.MaxCount != nil {
			return p.MaxCount(t)
		}
	case All:
		if p.All != nil {
			return p.All(t)
		}
	case Any:
		if p.Any != nil {
			return p.Any(t)
		}
	case In:
		if p.In != nil {
			return p.In(t)
		}
	case Field:
		if p.Field != nil {
			return p.Field(t)
		}
	case Link:
		if p.Link != nil {
			return p.Link(t)
		}
	case And:
		if p.And != nil {
			return p.And(t)
		}
	case Or:
		if p.Or != nil {
			return p.Or(t)
		}
	case When:
		if p.When != nil {
			return p.When(t)
		}
	case Guard:
		if p.Guard != nil {
			return p.Guard(t)
		}
	case Meta:
		if p.Meta != nil {
			return p.Meta(t)
		}
	}
	if p.Otherwise == nil {
		panic("shape: no probe case and no Otherwise fallback for " + KindOf(s))
	}
	return p.Otherwise(s)
}
