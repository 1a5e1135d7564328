package sparql

import (
	"errors"
	"fmt"

	"github.com/c360studio/semlink/shape"
)

// ErrUnknownStep reports a path step naming an edge not declared anywhere
// reachable in the shape. It typically surfaces user-supplied query
// parameters, so callers present it, not log it.
var ErrUnknownStep = errors.New("unknown path step")

// Path returns the sub-shape reached by following steps through the
// shape's declared edges: each step names a field or link edge (inverse
// edges as "^" + edge), recursing into every disjunct of a disjunction and
// both branches of a conditional, and the final step resolves to the
// matched field itself. Matches across branches combine conjunctively. An
// empty step list returns the shape unchanged.
func Path(s shape.Shape, steps []string) (shape.Shape, error) {
	if len(steps) == 0 {
		return s, nil
	}
	current := []shape.Shape{s}
	for i, step := range steps {
		var matched []shape.Shape
		for _, sh := range current {
			matched = append(matched, edgesAt(sh, step)...)
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
		}
		if i == len(steps)-1 {
			if len(matched) == 1 {
				return matched[0], nil
			}
			return shape.NewAnd(matched...), nil
		}
		next := make([]shape.Shape, 0, len(matched))
		for _, m := range matched {
			next = append(next, nestedOf(m))
		}
		current = next
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStep, steps[len(steps)-1])
}

// edgesAt collects the field and link nodes matching one step at the
// current level.
func edgesAt(s shape.Shape, step string) []shape.Shape {
	return shape.Map(s, shape.Probe[[]shape.Shape]{
		Field: func(t shape.Field) []shape.Shape {
			if stepMatches(step, t.Edge, t.Inverse) {
				return []shape.Shape{t}
			}
			return nil
		},
		Link: func(t shape.Link) []shape.Shape {
			if step == t.Edge {
				return []shape.Shape{t}
			}
			return nil
		},
		And: func(t shape.And) []shape.Shape { return edgesAcross(t.Shapes, step) },
		Or:  func(t shape.Or) []shape.Shape { return edgesAcross(t.Shapes, step) },
		When: func(t shape.When) []shape.Shape {
			return append(edgesAt(t.Pass, step), edgesAt(t.Fail, step)...)
		},
		Otherwise: func(shape.Shape) []shape.Shape { return nil },
	})
}

func edgesAcross(shapes []shape.Shape, step string) []shape.Shape {
	var out []shape.Shape
	for _, s := range shapes {
		out = append(out, edgesAt(s, step)...)
	}
	return out
}

func nestedOf(s shape.Shape) shape.Shape {
	switch t := s.(type) {
	case shape.Field:
		return t.Shape
	case shape.Link:
		return t.Shape
	default:
		panic("sparql: path matched a non-edge shape " + shape.KindOf(s))
	}
}

func stepMatches(step, edgeName string, inverse bool) bool {
	if inverse {
		return step == "^"+edgeName
	}
	return step == edgeName
}

// Hook returns the anchor bound at the end of steps: the target anchor of
// the matched edge, allocated exactly as Compile allocates it for the same
// traversal. An empty step list hooks to the root anchor.
func Hook(s shape.Shape, steps []string) (Anchor, error) {
	if len(steps) == 0 {
		return Root, nil
	}
	h := &hooker{scope: NewScope(), steps: steps}
	h.walk(s, Root, 0, true)
	if h.found == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, steps[h.deepest])
	}
	return *h.found, nil
}

// hooker replays the tree probe's traversal, allocating anchors in the
// same order without emitting text, and records the anchor of the first
// edge matching the final step.
type hooker struct {
	scope   *Scope
	steps   []string
	found   *Anchor
	deepest int
}

// walk visits s at anchor. When matching, steps[idx] is the step the next
// edge must satisfy; off-path subtrees are still walked so the scope stays
// aligned with compilation.
func (h *hooker) walk(s shape.Shape, at Anchor, idx int, matching bool) {
	if h.found != nil {
		return
	}
	shape.Map(s, shape.Probe[any]{
		Field: func(t shape.Field) any {
			var target Anchor
			if t.Inverse {
				target = h.scope.Inverse()
			} else {
				target = h.scope.Forward()
			}
			h.enter(t.Shape, t.Edge, t.Inverse, target, target, idx, matching)
			return nil
		},
		Link: func(t shape.Link) any {
			target := h.scope.Forward()
			h.enter(t.Shape, t.Edge, false, target, target, idx, matching)
			return nil
		},
		And: func(t shape.And) any {
			for _, op := range t.Shapes {
				h.walk(op, at, idx, matching)
			}
			return nil
		},
		Or: func(t shape.Or) any {
			for _, op := range t.Shapes {
				h.walk(op, at, idx, matching)
			}
			return nil
		},
		When: func(t shape.When) any {
			h.walk(t.Pass, at, idx, matching)
			h.walk(t.Fail, at, idx, matching)
			return nil
		},
		Otherwise: func(shape.Shape) any { return nil },
	})
}

// enter handles one edge node: match the current step if on-path, then
// descend. Constant-fail nested shapes are not walked, mirroring the tree
// probe, which allocates their target but skips their subtree.
func (h *hooker) enter(nested shape.Shape, edgeName string, inverse bool, target, hookAt Anchor, idx int, matching bool) {
	onPath := matching && stepMatches(h.steps[idx], edgeName, inverse)
	if onPath {
		if idx+1 > h.deepest {
			h.deepest = idx + 1
		}
		if idx == len(h.steps)-1 {
			if h.found == nil {
				a := hookAt
				h.found = &a
			}
			return
		}
	}
	if shape.Fail(nested) {
		return
	}
	if onPath {
		h.walk(nested, target, idx+1, true)
		return
	}
	h.walk(nested, target, 0, false)
}
