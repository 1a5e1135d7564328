// Package semlink provides the platform vocabulary for the semlink system.
//
// It follows the semstreams vocabulary conventions:
//   - Predicates use three-level dotted notation (domain.category.property)
//     and are registered in init() via vocabulary.Register()
//   - IRI mappings use vocabulary.WithIRI() for RDF export compatibility
//   - Namespace constants anchor the platform ontology and resource instances
//
// The package also defines the node-kind sentinel IRIs consumed by shape
// Datatype constraints, and PredicateIRI, the single edge-identifier
// resolution point shared by the query compiler and the RDF exporters.
// Edge identifiers appearing in shapes may be absolute IRIs, prefixed names
// (rdf:type, xsd:string), registered dotted predicates, or bare names.
package semlink
