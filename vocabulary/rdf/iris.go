// Package rdf defines the W3C vocabulary terms the compiler, validator,
// and exporters depend on. Terms are plain IRI constants; no registration
// is needed because these vocabularies are universal.
package rdf

// Core W3C namespaces.
const (
	NS   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"
	XSD  = "http://www.w3.org/2001/XMLSchema#"
	OWL  = "http://www.w3.org/2002/07/owl#"
)

// RDF and RDFS terms.
const (
	// Type is the instance-of edge (rdf:type).
	Type = NS + "type"

	// SubClassOf is the class-hierarchy edge (rdfs:subClassOf).
	SubClassOf = RDFS + "subClassOf"

	// Label is the human-readable label edge (rdfs:label).
	Label = RDFS + "label"

	// Comment is the human-readable description edge (rdfs:comment).
	Comment = RDFS + "comment"
)

// XSD datatype IRIs for typed literals.
const (
	String   = XSD + "string"
	Boolean  = XSD + "boolean"
	Integer  = XSD + "integer"
	Decimal  = XSD + "decimal"
	Double   = XSD + "double"
	DateTime = XSD + "dateTime"
	Date     = XSD + "date"
	Duration = XSD + "duration"
	AnyURI   = XSD + "anyURI"
)
