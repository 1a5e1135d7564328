// Package shape implements the constraint algebra over graph-shaped data:
// an immutable tagged union of constraint node kinds, probe-based double
// dispatch, constant-pass/fail evaluation, parametric redaction, and
// structural validation with diagnostic traces. Query compilation lives in
// the sparql subpackage.
//
// Shapes are built by the New* constructors, which apply the algebraic
// simplification rules at construction time, and are immutable afterwards:
// safe to share across any number of concurrent redaction, compilation,
// and validation calls. Treat the exported slice fields as read-only.
package shape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/semlink/graph"
)

// Shape is one node of the constraint algebra. The union is closed: only
// the kinds declared in this package implement it, so probes can dispatch
// exhaustively with a single fallback arm.
type Shape interface {
	isShape()
}

// Datatype constrains the focus value's datatype or node kind. The IRI may
// be a concrete literal datatype or one of the node-kind sentinels in
// vocabulary/semlink (any value, resource, blank, IRI, literal).
type Datatype struct{ IRI string }

// Clazz constrains the focus to instances of a class, through the
// reflexive-transitive subclass closure.
type Clazz struct{ IRI string }

// MinExclusive is a strict lower ordering bound with SPARQL-order semantics.
type MinExclusive struct{ Limit graph.Value }

// MaxExclusive is a strict upper ordering bound.
type MaxExclusive struct{ Limit graph.Value }

// MinInclusive is an inclusive lower ordering bound.
type MinInclusive struct{ Limit graph.Value }

// MaxInclusive is an inclusive upper ordering bound.
type MaxInclusive struct{ Limit graph.Value }

// MinLength bounds the lexical length of the focus value from below.
type MinLength struct{ Limit int }

// MaxLength bounds the lexical length of the focus value from above.
type MaxLength struct{ Limit int }

// Pattern constrains the focus value's lexical form to match a regular
// expression, with SPARQL-style flags (i, s, m).
type Pattern struct {
	Expr  string
	Flags string
}

// Like constrains the focus value to contain every keyword as a
// case-insensitive word-prefix match, in order.
type Like struct{ Keywords string }

// Stem constrains the focus value's lexical form to start with a prefix.
type Stem struct{ Prefix string }

// MinCount bounds the cardinality of the matched value set from below.
type MinCount struct{ Limit int }

// MaxCount bounds the cardinality of the matched value set from above.
type MaxCount struct{ Limit int }

// All requires every listed value to be present in the matched value set.
type All struct{ Values []graph.Value }

// Any requires at least one listed value to be present in the matched
// value set.
type Any struct{ Values []graph.Value }

// In requires every matched value to be drawn from the listed set.
type In struct{ Values []graph.Value }

// Field constrains an edge: outgoing when Inverse is false, incoming when
// true. The nested shape constrains the edge's targets.
type Field struct {
	Edge    string
	Inverse bool
	Shape   Shape
}

// Link is a named alias edge for computed or derived relations. Queries and
// validation treat it as a forward field; it stays a distinct kind so
// renderers can collapse the hop when materializing documents.
type Link struct {
	Edge  string
	Shape Shape
}

// And is the conjunction of its operands; with no operands it is the
// canonical pass shape.
type And struct{ Shapes []Shape }

// Or is the disjunction of its operands; with no operands it is the
// canonical fail shape.
type Or struct{ Shapes []Shape }

// When applies Pass if Test matches the focus, Fail otherwise.
type When struct {
	Test Shape
	Pass Shape
	Fail Shape
}

// Guard is a parametric annotation: active only when the redaction
// context's tokens for Axis intersect Tokens. Guards must be resolved by
// Redact before compilation or validation.
type Guard struct {
	Axis   string
	Tokens []string
}

// Meta is a non-constraining annotation (alias, label, default, …),
// ignored by the evaluator, compiler, and validator.
type Meta struct {
	Key   string
	Value string
}

func (Datatype) isShape()     {}
func (Clazz) isShape()        {}
func (MinExclusive) isShape() {}
func (MaxExclusive) isShape() {}
func (MinInclusive) isShape() {}
func (MaxInclusive) isShape() {}
func (MinLength) isShape()    {}
func (MaxLength) isShape()    {}
func (Pattern) isShape()      {}
func (Like) isShape()         {}
func (Stem) isShape()         {}
func (MinCount) isShape()     {}
func (MaxCount) isShape()     {}
func (All) isShape()          {}
func (Any) isShape()          {}
func (In) isShape()           {}
func (Field) isShape()        {}
func (Link) isShape()         {}
func (And) isShape()          {}
func (Or) isShape()           {}
func (When) isShape()         {}
func (Guard) isShape()        {}
func (Meta) isShape()         {}

// NewDatatype constrains the focus to the given datatype or node-kind
// sentinel IRI.
func NewDatatype(iri string) Shape {
	mustName("datatype IRI", iri)
	return Datatype{IRI: iri}
}

// NewClazz constrains the focus to instances of the class.
func NewClazz(iri string) Shape {
	mustName("class IRI", iri)
	return Clazz{IRI: iri}
}

// NewMinExclusive bounds the focus strictly above limit.
func NewMinExclusive(limit graph.Value) Shape {
	mustValue("minExclusive limit", limit)
	return MinExclusive{Limit: limit}
}

// NewMaxExclusive bounds the focus strictly below limit.
func NewMaxExclusive(limit graph.Value) Shape {
	mustValue("maxExclusive limit", limit)
	return MaxExclusive{Limit: limit}
}

// NewMinInclusive bounds the focus at or above limit.
func NewMinInclusive(limit graph.Value) Shape {
	mustValue("minInclusive limit", limit)
	return MinInclusive{Limit: limit}
}

// NewMaxInclusive bounds the focus at or below limit.
func NewMaxInclusive(limit graph.Value) Shape {
	mustValue("maxInclusive limit", limit)
	return MaxInclusive{Limit: limit}
}

// NewMinLength bounds the lexical length from below.
func NewMinLength(limit int) Shape {
	mustCount("minLength", limit)
	return MinLength{Limit: limit}
}

// NewMaxLength bounds the lexical length from above.
func NewMaxLength(limit int) Shape {
	mustCount("maxLength", limit)
	return MaxLength{Limit: limit}
}

// NewPattern constrains the lexical form with a regular expression and
// SPARQL-style flags. The expression must compile.
func NewPattern(expr, flags string) Shape {
	mustName("pattern expression", expr)
	if _, err := CompilePattern(expr, flags); err != nil {
		panic(fmt.Sprintf("shape: invalid pattern %q with flags %q: %v", expr, flags, err))
	}
	return Pattern{Expr: expr, Flags: flags}
}

// NewLike constrains the lexical form to keyword word-prefix matches.
func NewLike(keywords string) Shape {
	if strings.TrimSpace(keywords) == "" {
		panic("shape: like keywords must not be blank")
	}
	return Like{Keywords: keywords}
}

// NewStem constrains the lexical form to start with prefix.
func NewStem(prefix string) Shape {
	mustName("stem prefix", prefix)
	return Stem{Prefix: prefix}
}

// NewMinCount bounds the matched value set's size from below.
func NewMinCount(limit int) Shape {
	mustCount("minCount", limit)
	return MinCount{Limit: limit}
}

// NewMaxCount bounds the matched value set's size from above.
func NewMaxCount(limit int) Shape {
	mustCount("maxCount", limit)
	return MaxCount{Limit: limit}
}

// NewAll requires every listed value to be present.
func NewAll(values ...graph.Value) Shape {
	return All{Values: dedupValues("all", values)}
}

// NewAny requires at least one listed value to be present.
func NewAny(values ...graph.Value) Shape {
	return Any{Values: dedupValues("any", values)}
}

// NewIn restricts matched values to the listed set.
func NewIn(values ...graph.Value) Shape {
	return In{Values: dedupValues("in", values)}
}

// NewField constrains an outgoing edge; the nested shapes combine
// conjunctively.
func NewField(edge string, shapes ...Shape) Shape {
	mustName("field edge", edge)
	return Field{Edge: edge, Shape: NewAnd(shapes...)}
}

// NewInverseField constrains an incoming edge.
func NewInverseField(edge string, shapes ...Shape) Shape {
	mustName("field edge", edge)
	return Field{Edge: edge, Inverse: true, Shape: NewAnd(shapes...)}
}

// NewLink declares a virtual edge; the nested shapes combine conjunctively.
func NewLink(edge string, shapes ...Shape) Shape {
	mustName("link edge", edge)
	return Link{Edge: edge, Shape: NewAnd(shapes...)}
}

// NewAnd builds the conjunction of shapes, applying the simplification
// rules: nested conjunctions flatten, duplicates collapse to the first
// occurrence, a single operand stands alone, and a canonical-fail operand
// folds the whole conjunction to the canonical fail.
func NewAnd(shapes ...Shape) Shape {
	flat := make([]Shape, 0, len(shapes))
	for i, s := range shapes {
		if s == nil {
			panic(fmt.Sprintf("shape: and operand %d is nil", i))
		}
		if inner, ok := s.(And); ok {
			flat = append(flat, inner.Shapes...)
			continue
		}
		flat = append(flat, s)
	}
	ops := make([]Shape, 0, len(flat))
	for _, s := range flat {
		if Fail(s) {
			return Or{}
		}
		if !containsShape(ops, s) {
			ops = append(ops, s)
		}
	}
	if len(ops) == 1 {
		return ops[0]
	}
	return And{Shapes: ops}
}

// NewOr builds the disjunction of shapes, applying the simplification
// rules: nested disjunctions flatten, duplicates collapse to the first
// occurrence, a single operand stands alone, and a canonical-pass operand
// folds the whole disjunction to the canonical pass.
func NewOr(shapes ...Shape) Shape {
	flat := make([]Shape, 0, len(shapes))
	for i, s := range shapes {
		if s == nil {
			panic(fmt.Sprintf("shape: or operand %d is nil", i))
		}
		if inner, ok := s.(Or); ok {
			flat = append(flat, inner.Shapes...)
			continue
		}
		flat = append(flat, s)
	}
	ops := make([]Shape, 0, len(flat))
	for _, s := range flat {
		if Pass(s) {
			return And{}
		}
		if !containsShape(ops, s) {
			ops = append(ops, s)
		}
	}
	if len(ops) == 1 {
		return ops[0]
	}
	return Or{Shapes: ops}
}

// NewWhen builds a conditional. A constant-pass test collapses to the pass
// branch, a constant-fail test to the fail branch, and structurally equal
// branches collapse to the pass branch.
func NewWhen(test, pass, fail Shape) Shape {
	if test == nil || pass == nil || fail == nil {
		panic("shape: when requires test, pass, and fail shapes")
	}
	if Equal(pass, fail) {
		return pass
	}
	if Pass(test) {
		return pass
	}
	if Fail(test) {
		return fail
	}
	return When{Test: test, Pass: pass, Fail: fail}
}

// NewGuard builds a parametric guard on an axis.
func NewGuard(axis string, tokens ...string) Guard {
	mustName("guard axis", axis)
	if len(tokens) == 0 {
		panic("shape: guard requires at least one token")
	}
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		mustName("guard token", tok)
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return Guard{Axis: axis, Tokens: out}
}

// Then composes the guard with a body: the body applies only when the
// guard is active, and the whole composition redacts to the body or to the
// canonical fail.
func (g Guard) Then(shapes ...Shape) Shape {
	ops := make([]Shape, 0, len(shapes)+1)
	ops = append(ops, g)
	ops = append(ops, shapes...)
	return NewAnd(ops...)
}

// NewMeta annotates a shape position without constraining it.
func NewMeta(key, value string) Shape {
	mustName("meta key", key)
	return Meta{Key: key, Value: value}
}

func mustName(what, v string) {
	if v == "" {
		panic("shape: " + what + " must not be empty")
	}
}

func mustValue(what string, v graph.Value) {
	if v.IsZero() {
		panic("shape: " + what + " must not be the zero value")
	}
}

func mustCount(what string, n int) {
	if n < 0 {
		panic(fmt.Sprintf("shape: %s must not be negative, got %d", what, n))
	}
}

func dedupValues(what string, values []graph.Value) []graph.Value {
	out := make([]graph.Value, 0, len(values))
	seen := make(map[graph.Value]bool, len(values))
	for _, v := range values {
		if v.IsZero() {
			panic("shape: " + what + " values must not include the zero value")
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func containsShape(shapes []Shape, s Shape) bool {
	for _, op := range shapes {
		if Equal(op, s) {
			return true
		}
	}
	return false
}

// Equal reports structural equality: two shapes are equal iff their node
// trees are equal, independent of object identity.
func Equal(a, b Shape) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case All:
		y, ok := b.(All)
		return ok && equalValues(x.Values, y.Values)
	case Any:
		y, ok := b.(Any)
		return ok && equalValues(x.Values, y.Values)
	case In:
		y, ok := b.(In)
		return ok && equalValues(x.Values, y.Values)
	case Field:
		y, ok := b.(Field)
		return ok && x.Edge == y.Edge && x.Inverse == y.Inverse && Equal(x.Shape, y.Shape)
	case Link:
		y, ok := b.(Link)
		return ok && x.Edge == y.Edge && Equal(x.Shape, y.Shape)
	case And:
		y, ok := b.(And)
		return ok && equalShapes(x.Shapes, y.Shapes)
	case Or:
		y, ok := b.(Or)
		return ok && equalShapes(x.Shapes, y.Shapes)
	case When:
		y, ok := b.(When)
		return ok && Equal(x.Test, y.Test) && Equal(x.Pass, y.Pass) && Equal(x.Fail, y.Fail)
	case Guard:
		y, ok := b.(Guard)
		return ok && x.Axis == y.Axis && equalTokens(x.Tokens, y.Tokens)
	default:
		// Remaining kinds hold only comparable fields.
		return a == b
	}
}

func equalShapes(a, b []Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalValues(a, b []graph.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KindOf names a shape's kind for traces, errors, and contract-violation
// messages.
func KindOf(s Shape) string {
	switch s.(type) {
	case Datatype:
		return "datatype"
	case Clazz:
		return "class"
	case MinExclusive:
		return "minExclusive"
	case MaxExclusive:
		return "maxExclusive"
	case MinInclusive:
		return "minInclusive"
	case MaxInclusive:
		return "maxInclusive"
	case MinLength:
		return "minLength"
	case MaxLength:
		return "maxLength"
	case Pattern:
		return "pattern"
	case Like:
		return "like"
	case Stem:
		return "stem"
	case MinCount:
		return "minCount"
	case MaxCount:
		return "maxCount"
	case All:
		return "all"
	case Any:
		return "any"
	case In:
		return "in"
	case Field:
		return "field"
	case Link:
		return "link"
	case And:
		return "and"
	case Or:
		return "or"
	case When:
		return "when"
	case Guard:
		return "guard"
	case Meta:
		return "meta"
	default:
		return fmt.Sprintf("%T", s)
	}
}

// CompilePattern compiles a SPARQL-style pattern with its flags (i, s, m)
// into a Go regexp.
func CompilePattern(expr, flags string) (*regexp.Regexp, error) {
	if flags != "" {
		for _, f := range flags {
			switch f {
			case 'i', 's', 'm':
			default:
				return nil, fmt.Errorf("unsupported pattern flag %q", string(f))
			}
		}
		expr = "(?" + flags + ")" + expr
	}
	return regexp.Compile(expr)
}

// KeywordPattern renders Like keywords as a regular expression requiring
// each keyword as a word-prefix match, in order. Case folding is up to the
// caller's flags.
func KeywordPattern(keywords string) string {
	words := strings.FieldsFunc(keywords, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		escaped = append(escaped, regexp.QuoteMeta(w))
	}
	return `\b` + strings.Join(escaped, `.*\b`)
}
