package shape

import (
	"testing"

	"github.com/c360studio/semlink/vocabulary/rdf"
)

func TestRedactResolvesGuardedBranch(t *testing.T) {
	owner := NewField("org.doc.owner")
	guarded := NewGuard("role", "admin").Then(owner)

	t.Run("matching token keeps the body", func(t *testing.T) {
		if got := Redact(guarded, "role", "admin"); !Equal(got, owner) {
			t.Errorf("got %#v, want %#v", got, owner)
		}
	})

	t.Run("disjoint tokens fail the branch", func(t *testing.T) {
		got := Redact(guarded, "role", "guest")
		if !Fail(got) {
			t.Errorf("got %#v, want a constant fail", got)
		}
		if !Equal(got, Or{}) {
			t.Errorf("got %#v, want the canonical fail", got)
		}
	})

	t.Run("no tokens deactivate every guard", func(t *testing.T) {
		if got := Redact(guarded, "role"); !Fail(got) {
			t.Errorf("got %#v, want a constant fail", got)
		}
	})
}

func TestRedactLeavesOtherAxesUntouched(t *testing.T) {
	s := NewAnd(
		NewGuard("role", "admin").Then(NewField("org.doc.owner")),
		NewGuard("task", "update").Then(NewField("org.doc.title")),
	)
	got := Redact(s, "role", "admin")
	want := NewAnd(
		NewField("org.doc.owner"),
		NewGuard("task", "update").Then(NewField("org.doc.title")),
	)
	if !Equal(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	if !guardFree(Redact(got, "task", "update"), "task") {
		t.Error("task guards survived their redaction")
	}
}

func TestRedactRecursesNestedShapes(t *testing.T) {
	t.Run("fields re-simplify around resolved guards", func(t *testing.T) {
		s := NewField("org.doc.body",
			NewGuard("view", "detail").Then(NewDatatype(rdf.String)),
		)
		digest := Redact(s, "view", "digest")
		if want := (Field{Edge: "org.doc.body", Shape: Or{}}); !Equal(digest, want) {
			t.Errorf("got %#v, want %#v", digest, want)
		}
		detail := Redact(s, "view", "detail")
		if want := NewField("org.doc.body", NewDatatype(rdf.String)); !Equal(detail, want) {
			t.Errorf("got %#v, want %#v", detail, want)
		}
	})

	t.Run("disjunctions drop failed branches", func(t *testing.T) {
		s := NewOr(
			NewGuard("mode", "convey").Then(NewField("org.doc.body")),
			NewGuard("mode", "filter").Then(NewField("org.doc.tag")),
		)
		got := Redact(s, "mode", "filter")
		if want := NewField("org.doc.tag"); !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("conditionals collapse once the test resolves", func(t *testing.T) {
		s := NewWhen(
			NewGuard("task", "create").Then(),
			NewField("org.doc.createdAt", NewMinCount(1)),
			NewField("org.doc.updatedAt", NewMinCount(1)),
		)
		created := Redact(s, "task", "create")
		if want := NewField("org.doc.createdAt", NewMinCount(1)); !Equal(created, want) {
			t.Errorf("got %#v, want %#v", created, want)
		}
		updated := Redact(s, "task", "update")
		if want := NewField("org.doc.updatedAt", NewMinCount(1)); !Equal(updated, want) {
			t.Errorf("got %#v, want %#v", updated, want)
		}
	})

	t.Run("links recurse like fields", func(t *testing.T) {
		s := NewLink("org.doc.canonical", NewGuard("view", "detail").Then(NewMinCount(1)))
		got := Redact(s, "view", "digest")
		if want := (Link{Edge: "org.doc.canonical", Shape: Or{}}); !Equal(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})
}

// Redaction terminates and strips every guard on the axis, whatever the
// token set.
func TestRedactTotality(t *testing.T) {
	s := NewAnd(
		NewGuard("role", "admin").Then(
			NewField("org.doc.owner", NewGuard("role", "editor").Then(NewMinCount(1))),
		),
		NewOr(
			NewGuard("role", "guest"),
			NewWhen(NewField("org.doc.draft", NewMinCount(1)),
				NewGuard("role", "admin").Then(NewField("org.doc.reviewer")),
				NewGuard("view", "detail").Then(NewField("org.doc.published")),
			),
		),
	)
	for _, tokens := range [][]string{{"admin"}, {"editor"}, {"guest"}, {"admin", "guest"}, nil} {
		got := Redact(s, "role", tokens...)
		if !guardFree(got, "role") {
			t.Errorf("tokens %v left a role guard in %#v", tokens, got)
		}
	}
}

func guardFree(s Shape, axis string) bool {
	return Map(s, Probe[bool]{
		Guard: func(t Guard) bool { return t.Axis != axis },
		Field: func(t Field) bool { return guardFree(t.Shape, axis) },
		Link:  func(t Link) bool { return guardFree(t.Shape, axis) },
		And: func(t And) bool {
			for _, op := range t.Shapes {
				if !guardFree(op, axis) {
					return false
				}
			}
			return true
		},
		Or: func(t Or) bool {
			for _, op := range t.Shapes {
				if !guardFree(op, axis) {
					return false
				}
			}
			return true
		},
		When: func(t When) bool {
			return guardFree(t.Test, axis) && guardFree(t.Pass, axis) && guardFree(t.Fail, axis)
		},
		Otherwise: func(Shape) bool { return true },
	})
}
