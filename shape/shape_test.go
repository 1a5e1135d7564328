package shape

import (
	"strings"
	"testing"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
)

func TestAndSimplification(t *testing.T) {
	name := NewField("org.person.name", NewMinCount(1))
	email := NewField("org.person.email", NewDatatype(rdf.String))

	t.Run("no operands is the canonical pass", func(t *testing.T) {
		if got := NewAnd(); !Equal(got, And{}) {
			t.Errorf("NewAnd() = %#v, want And{}", got)
		}
	})

	t.Run("flattens nested conjunctions", func(t *testing.T) {
		got := NewAnd(NewAnd(name, email), NewAnd())
		want := And{Shapes: []Shape{name, email}}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("collapses duplicates to the first occurrence", func(t *testing.T) {
		got := NewAnd(name, email, NewField("org.person.name", NewMinCount(1)))
		want := And{Shapes: []Shape{name, email}}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("single operand stands alone", func(t *testing.T) {
		if got := NewAnd(name); !Equal(got, name) {
			t.Errorf("got %#v, want the operand itself", got)
		}
	})

	t.Run("constant-fail operand folds to the canonical fail", func(t *testing.T) {
		if got := NewAnd(name, NewOr()); !Equal(got, Or{}) {
			t.Errorf("got %#v, want Or{}", got)
		}
		if got := NewAnd(NewMaxCount(0), NewDatatype(rdf.String)); !Equal(got, Or{}) {
			t.Errorf("got %#v, want Or{}", got)
		}
	})

	t.Run("annotations survive conjunction", func(t *testing.T) {
		got := NewAnd(NewMeta("label", "Person"), name)
		want := And{Shapes: []Shape{Meta{Key: "label", Value: "Person"}, name}}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})
}

func TestOrSimplification(t *testing.T) {
	iri := NewDatatype(rdf.AnyURI)
	str := NewDatatype(rdf.String)

	t.Run("no operands is the canonical fail", func(t *testing.T) {
		if got := NewOr(); !Equal(got, Or{}) {
			t.Errorf("NewOr() = %#v, want Or{}", got)
		}
	})

	t.Run("flattens nested disjunctions", func(t *testing.T) {
		got := NewOr(NewOr(iri, str), NewOr())
		want := Or{Shapes: []Shape{iri, str}}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("collapses duplicates", func(t *testing.T) {
		got := NewOr(iri, str, NewDatatype(rdf.AnyURI))
		want := Or{Shapes: []Shape{iri, str}}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("single operand stands alone", func(t *testing.T) {
		if got := NewOr(str); !Equal(got, str) {
			t.Errorf("got %#v, want the operand itself", got)
		}
	})

	t.Run("constant-pass operand folds to the canonical pass", func(t *testing.T) {
		if got := NewOr(str, NewAnd()); !Equal(got, And{}) {
			t.Errorf("got %#v, want And{}", got)
		}
	})
}

func TestWhenCollapse(t *testing.T) {
	test := NewField("org.doc.draft", NewMinCount(1))
	pass := NewField("org.doc.reviewer", NewMinCount(1))
	fail := NewField("org.doc.published", NewMinCount(1))

	t.Run("constant-pass test keeps the pass branch", func(t *testing.T) {
		if got := NewWhen(NewAnd(), pass, fail); !Equal(got, pass) {
			t.Errorf("got %#v, want pass branch", got)
		}
	})

	t.Run("constant-fail test keeps the fail branch", func(t *testing.T) {
		if got := NewWhen(NewOr(), pass, fail); !Equal(got, fail) {
			t.Errorf("got %#v, want fail branch", got)
		}
	})

	t.Run("equal branches collapse", func(t *testing.T) {
		if got := NewWhen(test, pass, NewField("org.doc.reviewer", NewMinCount(1))); !Equal(got, pass) {
			t.Errorf("got %#v, want shared branch", got)
		}
	})

	t.Run("open test stays conditional", func(t *testing.T) {
		got := NewWhen(test, pass, fail)
		want := When{Test: test, Pass: pass, Fail: fail}
		if !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})
}

func TestOptimizationIdempotence(t *testing.T) {
	shapes := []Shape{
		NewAnd(),
		NewOr(),
		NewDatatype(rdf.String),
		NewField("org.person.name", NewMinCount(1), NewDatatype(rdf.String)),
		NewAnd(NewField("org.person.name"), NewField("org.person.email")),
		NewOr(NewDatatype(rdf.String), NewDatatype(rdf.AnyURI)),
		NewWhen(NewField("org.doc.draft", NewMinCount(1)), NewMinCount(1), NewMaxCount(3)),
		NewGuard("role", "admin").Then(NewField("org.doc.owner")),
	}
	for _, s := range shapes {
		rebuilt := rebuild(s)
		if !Equal(s, rebuilt) {
			t.Errorf("rebuilding %#v changed it to %#v", s, rebuilt)
		}
	}
}

// rebuild reconstructs a shape through the constructors, so an already
// canonical shape must come back structurally equal.
func rebuild(s Shape) Shape {
	switch t := s.(type) {
	case And:
		ops := make([]Shape, len(t.Shapes))
		for i, op := range t.Shapes {
			ops[i] = rebuild(op)
		}
		return NewAnd(ops...)
	case Or:
		ops := make([]Shape, len(t.Shapes))
		for i, op := range t.Shapes {
			ops[i] = rebuild(op)
		}
		return NewOr(ops...)
	case When:
		return NewWhen(rebuild(t.Test), rebuild(t.Pass), rebuild(t.Fail))
	case Field:
		if t.Inverse {
			return NewInverseField(t.Edge, rebuild(t.Shape))
		}
		return NewField(t.Edge, rebuild(t.Shape))
	case Link:
		return NewLink(t.Edge, rebuild(t.Shape))
	default:
		return s
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Shape
		want bool
	}{
		{
			"identical leaves",
			NewDatatype(rdf.String), NewDatatype(rdf.String),
			true,
		},
		{
			"different datatypes",
			NewDatatype(rdf.String), NewDatatype(rdf.Integer),
			false,
		},
		{
			"independent field constructions",
			NewField("org.person.name", NewMinCount(1)),
			NewField("org.person.name", NewMinCount(1)),
			true,
		},
		{
			"direction matters",
			NewField("org.person.knows"), NewInverseField("org.person.knows"),
			false,
		},
		{
			"field and link differ",
			NewField("org.person.alias"), NewLink("org.person.alias"),
			false,
		},
		{
			"operand order matters",
			NewAnd(NewMinCount(1), NewMaxCount(3)),
			NewAnd(NewMaxCount(3), NewMinCount(1)),
			false,
		},
		{
			"value sets compare elementwise",
			NewIn(graph.NewString("a"), graph.NewString("b")),
			NewIn(graph.NewString("a"), graph.NewString("b")),
			true,
		},
		{
			"guards compare axis and tokens",
			Shape(NewGuard("role", "admin")), Shape(NewGuard("role", "guest")),
			false,
		},
		{
			"canonical pass and fail differ",
			NewAnd(), NewOr(),
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Errorf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestGuardThen(t *testing.T) {
	field := NewField("org.doc.owner")
	got := NewGuard("role", "admin", "editor").Then(field)
	want := And{Shapes: []Shape{Guard{Axis: "role", Tokens: []string{"admin", "editor"}}, field}}
	if !Equal(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestConstructorRejectsInvalidArguments(t *testing.T) {
	cases := []struct {
		name string
		call func()
	}{
		{"nil and operand", func() { NewAnd(nil) }},
		{"nil or operand", func() { NewOr(NewAnd(), nil) }},
		{"negative min count", func() { NewMinCount(-1) }},
		{"negative max length", func() { NewMaxLength(-2) }},
		{"empty field edge", func() { NewField("") }},
		{"empty datatype", func() { NewDatatype("") }},
		{"zero range limit", func() { NewMinInclusive(graph.Value{}) }},
		{"malformed pattern", func() { NewPattern("(unclosed", "") }},
		{"unknown pattern flag", func() { NewPattern("a+", "x") }},
		{"blank like keywords", func() { NewLike("   ") }},
		{"guard without tokens", func() { NewGuard("role") }},
		{"nil when branch", func() { NewWhen(NewAnd(), nil, NewOr()) }},
		{"zero in value", func() { NewIn(graph.Value{}) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected a panic")
				}
				if msg, ok := r.(string); ok && !strings.HasPrefix(msg, "shape: ") {
					t.Errorf("panic %q does not identify the package", msg)
				}
			}()
			tc.call()
		})
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]Shape{
		"datatype": NewDatatype(rdf.String),
		"minCount": NewMinCount(1),
		"field":    NewField("org.person.name"),
		"and":      And{},
		"or":       Or{},
		"guard":    NewGuard("role", "admin"),
		"meta":     NewMeta("label", "x"),
	}
	for want, s := range cases {
		if got := KindOf(s); got != want {
			t.Errorf("KindOf(%#v) = %q, want %q", s, got, want)
		}
	}
}
