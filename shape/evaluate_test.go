package shape

import (
	"testing"

	"github.com/c360studio/semlink/vocabulary/rdf"
)

func TestConstantVerdicts(t *testing.T) {
	cases := []struct {
		name  string
		shape Shape
		pass  bool
		fail  bool
	}{
		{"empty conjunction", And{}, true, false},
		{"empty disjunction", Or{}, false, true},
		{"annotation", NewMeta("label", "x"), true, false},
		{"conjunction of annotations", And{Shapes: []Shape{NewMeta("a", "1"), NewMeta("b", "2")}}, true, false},
		{"zero min count", NewMinCount(0), false, false},
		{"zero max count", NewMaxCount(0), false, true},
		{"empty any", Any{}, false, true},
		{"empty in", In{}, false, true},
		{"empty all", All{}, false, false},
		{"datatype depends on data", NewDatatype(rdf.String), false, false},
		{"field depends on data", NewField("org.person.name"), false, false},
		{"unresolved guard depends on context", NewGuard("role", "admin"), false, false},
		{"conjunction with failing operand", And{Shapes: []Shape{NewDatatype(rdf.String), Or{}}}, false, true},
		{"disjunction with open operand", Or{Shapes: []Shape{NewDatatype(rdf.String), Or{}}}, false, false},
		{"disjunction of failures", Or{Shapes: []Shape{MaxCount{}, In{}}}, false, true},
		{"conditional with agreeing branches", When{Test: NewField("x"), Pass: MaxCount{}, Fail: Or{}}, false, true},
		{"conditional with open branch", When{Test: NewField("x"), Pass: And{}, Fail: NewMinCount(1)}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Pass(tc.shape); got != tc.pass {
				t.Errorf("Pass = %v, want %v", got, tc.pass)
			}
			if got := Fail(tc.shape); got != tc.fail {
				t.Errorf("Fail = %v, want %v", got, tc.fail)
			}
			if got, want := Empty(tc.shape), tc.pass || tc.fail; got != want {
				t.Errorf("Empty = %v, want %v", got, want)
			}
		})
	}
}

// Conjunctions fail exactly when an operand fails; disjunctions fail
// exactly when every operand fails. Literal nodes sidestep constructor
// folding so the propagation itself is what is checked.
func TestVerdictPropagation(t *testing.T) {
	samples := []Shape{
		And{},
		Or{},
		NewMaxCount(0),
		NewDatatype(rdf.String),
		NewField("org.person.name", NewMinCount(1)),
	}
	for _, a := range samples {
		for _, b := range samples {
			and := And{Shapes: []Shape{a, b}}
			if got, want := Fail(and), Fail(a) || Fail(b); got != want {
				t.Errorf("Fail(And(%s, %s)) = %v, want %v", KindOf(a), KindOf(b), got, want)
			}
			or := Or{Shapes: []Shape{a, b}}
			if got, want := Fail(or), Fail(a) && Fail(b); got != want {
				t.Errorf("Fail(Or(%s, %s)) = %v, want %v", KindOf(a), KindOf(b), got, want)
			}
		}
	}
}
