package graph

import (
	"time"

	"github.com/c360studio/semstreams/message"
)

// Statement is one subject/predicate/object assertion. Predicates are edge
// identifiers: absolute IRIs, prefixed names, or registered dotted
// vocabulary names (resolved by vocabulary/semlink.PredicateIRI when
// rendered as RDF or query text).
type Statement struct {
	Subject   Value  `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Value  `json:"object"`
}

// NewStatement builds a statement.
func NewStatement(subject Value, predicate string, object Value) Statement {
	return Statement{Subject: subject, Predicate: predicate, Object: object}
}

// Triple converts the statement to a semstreams triple for ecosystem
// interop. Literal objects become native Go values, resources their text.
func (s Statement) Triple(source string, at time.Time) message.Triple {
	return message.Triple{
		Subject:    s.Subject.Text(),
		Predicate:  s.Predicate,
		Object:     s.Object.Native(),
		Source:     source,
		Timestamp:  at,
		Confidence: 1.0,
	}
}
