// Package graph models RDF-style terms, statements, and models, and the
// NATS payloads that carry them between components.
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
	"github.com/google/uuid"
)

// Kind distinguishes the three term kinds.
type Kind int

// Term kinds, in SPARQL ordering rank: blank nodes, then IRIs, then literals.
const (
	KindBNode Kind = iota
	KindIRI
	KindLiteral
)

// Value is an immutable RDF term: an IRI, a blank node, or a literal with a
// datatype. The zero Value is invalid; use the constructors. Values are
// comparable with == and hashable as map keys.
type Value struct {
	kind  Kind
	text  string // IRI text, blank label, or lexical form
	dtype string // literal datatype IRI, empty for IRIs and blanks
}

// NewIRI returns an IRI term.
func NewIRI(iri string) Value {
	return Value{kind: KindIRI, text: iri}
}

// NewBNode returns a blank node with the given label.
func NewBNode(label string) Value {
	return Value{kind: KindBNode, text: label}
}

// NewBlank mints a fresh blank node with a UUID label.
func NewBlank() Value {
	return Value{kind: KindBNode, text: uuid.New().String()}
}

// NewLiteral returns a literal with an explicit datatype IRI. An empty
// datatype defaults to xsd:string.
func NewLiteral(lexical, datatype string) Value {
	if datatype == "" {
		datatype = rdf.String
	}
	return Value{kind: KindLiteral, text: lexical, dtype: datatype}
}

// NewString returns an xsd:string literal.
func NewString(s string) Value {
	return Value{kind: KindLiteral, text: s, dtype: rdf.String}
}

// NewBoolean returns an xsd:boolean literal.
func NewBoolean(b bool) Value {
	return Value{kind: KindLiteral, text: strconv.FormatBool(b), dtype: rdf.Boolean}
}

// NewInteger returns an xsd:integer literal.
func NewInteger(i int64) Value {
	return Value{kind: KindLiteral, text: strconv.FormatInt(i, 10), dtype: rdf.Integer}
}

// NewDecimal returns an xsd:decimal literal.
func NewDecimal(f float64) Value {
	return Value{kind: KindLiteral, text: strconv.FormatFloat(f, 'f', -1, 64), dtype: rdf.Decimal}
}

// NewDateTime returns an xsd:dateTime literal in RFC3339 form, UTC.
func NewDateTime(t time.Time) Value {
	return Value{kind: KindLiteral, text: t.UTC().Format(time.RFC3339), dtype: rdf.DateTime}
}

// Kind returns the term kind.
func (v Value) Kind() Kind { return v.kind }

// Text returns the IRI, blank label, or lexical form.
func (v Value) Text() string { return v.text }

// IsZero reports whether v is the invalid zero Value.
func (v Value) IsZero() bool { return v == Value{} }

// IsIRI reports whether v is an IRI.
func (v Value) IsIRI() bool { return v.kind == KindIRI && v.text != "" }

// IsBNode reports whether v is a blank node.
func (v Value) IsBNode() bool { return v.kind == KindBNode }

// IsLiteral reports whether v is a literal.
func (v Value) IsLiteral() bool { return v.kind == KindLiteral }

// IsResource reports whether v can be the subject of a statement.
func (v Value) IsResource() bool { return v.IsIRI() || v.IsBNode() }

// Datatype returns the literal's datatype IRI, or the node-kind sentinel
// for IRIs and blank nodes.
func (v Value) Datatype() string {
	switch v.kind {
	case KindIRI:
		return semlink.IRITerm
	case KindBNode:
		return semlink.BNodeTerm
	default:
		return v.dtype
	}
}

// numericDatatypes are the literal datatypes that compare as numbers.
var numericDatatypes = map[string]bool{
	rdf.Integer: true,
	rdf.Decimal: true,
	rdf.Double:  true,
}

// IsNumeric reports whether v is a literal of a numeric datatype.
func (v Value) IsNumeric() bool {
	return v.kind == KindLiteral && numericDatatypes[v.dtype]
}

// AsInt returns the value as an int64 when it is an integral numeric literal.
func (v Value) AsInt() (int64, bool) {
	if !v.IsNumeric() {
		return 0, false
	}
	i, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// AsFloat returns the value as a float64 when it is a numeric literal.
func (v Value) AsFloat() (float64, bool) {
	if !v.IsNumeric() {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsBool returns the value as a bool when it is an xsd:boolean literal.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindLiteral || v.dtype != rdf.Boolean {
		return false, false
	}
	b, err := strconv.ParseBool(v.text)
	if err != nil {
		return false, false
	}
	return b, true
}

// AsTime returns the value as a time.Time when it is an xsd:dateTime or
// xsd:date literal.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindLiteral {
		return time.Time{}, false
	}
	switch v.dtype {
	case rdf.DateTime:
		t, err := time.Parse(time.RFC3339, v.text)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case rdf.Date:
		t, err := time.Parse("2006-01-02", v.text)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Native returns the closest native Go representation: string for IRIs and
// blank labels, typed natives for boolean/numeric literals, the lexical
// form otherwise.
func (v Value) Native() any {
	switch {
	case v.kind != KindLiteral:
		return v.text
	case v.dtype == rdf.Boolean:
		if b, ok := v.AsBool(); ok {
			return b
		}
	case v.dtype == rdf.Integer:
		if i, ok := v.AsInt(); ok {
			return i
		}
	case numericDatatypes[v.dtype]:
		if f, ok := v.AsFloat(); ok {
			return f
		}
	}
	return v.text
}

// Compare orders two values with SPARQL operator-mapping semantics:
// numeric literals compare cross-type, strings by codepoint, booleans
// false before true, dateTimes chronologically, IRIs and blank labels by
// codepoint. The second result is false when the pair has no defined
// ordering (different term kinds or incomparable datatypes).
func Compare(a, b Value) (int, bool) {
	if a.kind != b.kind {
		return 0, false
	}
	if a.kind != KindLiteral {
		return strings.Compare(a.text, b.text), true
	}
	switch {
	case a.IsNumeric() && b.IsNumeric():
		x, okx := a.AsFloat()
		y, oky := b.AsFloat()
		if !okx || !oky {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		case math.IsNaN(x) || math.IsNaN(y):
			return 0, false
		}
		return 0, true
	case a.dtype == rdf.Boolean && b.dtype == rdf.Boolean:
		x, okx := a.AsBool()
		y, oky := b.AsBool()
		if !okx || !oky {
			return 0, false
		}
		switch {
		case !x && y:
			return -1, true
		case x && !y:
			return 1, true
		}
		return 0, true
	case a.dtype == b.dtype && (a.dtype == rdf.DateTime || a.dtype == rdf.Date):
		x, okx := a.AsTime()
		y, oky := b.AsTime()
		if !okx || !oky {
			return 0, false
		}
		return x.Compare(y), true
	case a.dtype == rdf.String && b.dtype == rdf.String:
		return strings.Compare(a.text, b.text), true
	}
	return 0, false
}

// Term renders the value as an N-Triples/SPARQL term: <iri>, _:label, or a
// quoted literal with its datatype (xsd:string datatypes are omitted).
func (v Value) Term() string {
	switch v.kind {
	case KindIRI:
		return "<" + v.text + ">"
	case KindBNode:
		return "_:" + v.text
	default:
		if v.dtype == "" || v.dtype == rdf.String {
			return `"` + EscapeLiteral(v.text) + `"`
		}
		return `"` + EscapeLiteral(v.text) + `"^^<` + v.dtype + ">"
	}
}

// EscapeLiteral escapes a lexical form for N-Triples/Turtle/SPARQL output.
func EscapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// String implements fmt.Stringer for logs and error messages.
func (v Value) String() string { return v.Term() }

// MarshalJSON renders the value in JSON-LD object form: IRIs and blanks as
// {"@id": …}, string/boolean/integer literals as native JSON scalars, and
// every other datatype as {"@value": …, "@type": …} so round-trips are
// exact.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindIRI:
		return json.Marshal(map[string]string{"@id": v.text})
	case KindBNode:
		return json.Marshal(map[string]string{"@id": "_:" + v.text})
	}
	switch v.dtype {
	case rdf.String:
		return json.Marshal(v.text)
	case rdf.Boolean:
		if b, ok := v.AsBool(); ok {
			return json.Marshal(b)
		}
	case rdf.Integer:
		if i, ok := v.AsInt(); ok {
			return json.Marshal(i)
		}
	}
	return json.Marshal(map[string]string{"@value": v.text, "@type": v.dtype})
}

// UnmarshalJSON parses the JSON-LD object form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON converts one JSON-LD object-form value into a Value.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("parse value: %w", err)
	}
	return FromNative(raw)
}

// FromNative converts a decoded JSON value (or a native Go scalar) into a
// Value. Maps must be in JSON-LD object form.
func FromNative(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return NewString(x), nil
	case bool:
		return NewBoolean(x), nil
	case int:
		return NewInteger(int64(x)), nil
	case int64:
		return NewInteger(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
			return NewInteger(int64(x)), nil
		}
		return NewDecimal(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return NewInteger(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", x.String(), err)
		}
		return NewDecimal(f), nil
	case time.Time:
		return NewDateTime(x), nil
	case map[string]any:
		if id, ok := x["@id"].(string); ok {
			if label, isBlank := strings.CutPrefix(id, "_:"); isBlank {
				return NewBNode(label), nil
			}
			return NewIRI(id), nil
		}
		lex, okv := x["@value"].(string)
		dt, okt := x["@type"].(string)
		if okv && okt {
			return NewLiteral(lex, dt), nil
		}
		if okv {
			return NewString(lex), nil
		}
		return Value{}, fmt.Errorf("value object needs @id or @value, got keys %v", mapKeys(x))
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
