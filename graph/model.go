package graph

// Model is an ordered set of statements. Operations that combine models
// deduplicate but preserve first-occurrence order, so repeated validation
// and trimming are stable.
type Model []Statement

// Contains reports whether the model holds the exact statement.
func (m Model) Contains(st Statement) bool {
	for _, s := range m {
		if s == st {
			return true
		}
	}
	return false
}

// Select returns the statements linking focus through edge, respecting
// direction: forward edges match the subject, inverse edges the object.
func (m Model) Select(focus Value, edge string, inverse bool) Model {
	var out Model
	for _, s := range m {
		if s.Predicate != edge {
			continue
		}
		if inverse {
			if s.Object == focus {
				out = append(out, s)
			}
		} else if s.Subject == focus {
			out = append(out, s)
		}
	}
	return out
}

// Objects returns the edge targets for focus: objects of forward edges,
// subjects of inverse edges. Duplicate targets collapse to one.
func (m Model) Objects(focus Value, edge string, inverse bool) []Value {
	var out []Value
	seen := make(map[Value]bool)
	for _, s := range m.Select(focus, edge, inverse) {
		target := s.Object
		if inverse {
			target = s.Subject
		}
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	return out
}

// Union merges other into a copy of m, deduplicating while preserving
// first-occurrence order.
func (m Model) Union(other Model) Model {
	out := make(Model, 0, len(m)+len(other))
	seen := make(map[Statement]bool, len(m)+len(other))
	for _, s := range m {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range other {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// SubsetOf reports whether every statement of m appears in other.
func (m Model) SubsetOf(other Model) bool {
	seen := make(map[Statement]bool, len(other))
	for _, s := range other {
		seen[s] = true
	}
	for _, s := range m {
		if !seen[s] {
			return false
		}
	}
	return true
}

// Subjects returns the distinct subjects in order of first appearance.
func (m Model) Subjects() []Value {
	var out []Value
	seen := make(map[Value]bool)
	for _, s := range m {
		if !seen[s.Subject] {
			seen[s.Subject] = true
			out = append(out, s.Subject)
		}
	}
	return out
}
