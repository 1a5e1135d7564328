package semlink

import "github.com/c360studio/semlink/vocabulary/rdf"

// Namespace is the base IRI prefix for all semlink ontology terms.
const Namespace = "https://semlink.dev/ontology/"

// ResourceNamespace is the base IRI for resource instances managed by the
// platform. Resource ids are appended directly (schema/id).
const ResourceNamespace = "https://semlink.dev/resource/"

// Node-kind sentinel IRIs for datatype constraints. A shape's Datatype
// constraint may name either a concrete literal datatype (an xsd: IRI) or
// one of these sentinels describing the kind of term expected at the focus.
const (
	// ValueTerm accepts every term (IRI, blank node, or literal).
	ValueTerm = Namespace + "terms/Value"

	// ResourceTerm accepts IRIs and blank nodes.
	ResourceTerm = Namespace + "terms/Resource"

	// BNodeTerm accepts blank nodes only.
	BNodeTerm = Namespace + "terms/BNode"

	// IRITerm accepts IRIs only.
	IRITerm = Namespace + "terms/IRI"

	// LiteralTerm accepts literals of any datatype.
	LiteralTerm = Namespace + "terms/Literal"
)

// Class IRIs for the platform's own entities.
const (
	// ClassResource is the base class of every managed resource.
	ClassResource = Namespace + "Resource"

	// ClassSchema represents a registered shape definition.
	ClassSchema = Namespace + "Schema"

	// ClassValidationReport represents the outcome of validating one
	// resource against its schema.
	ClassValidationReport = Namespace + "ValidationReport"
)

// prefixes maps the short prefixes accepted in shape files and dotted
// predicate resolution to their namespace IRIs.
var prefixes = map[string]string{
	"rdf":     rdf.NS,
	"rdfs":    rdf.RDFS,
	"xsd":     rdf.XSD,
	"owl":     rdf.OWL,
	"dc":      "http://purl.org/dc/elements/1.1/",
	"skos":    "http://www.w3.org/2004/02/skos/core#",
	"semlink": Namespace,
}

// Prefixes returns a copy of the built-in prefix table. Callers may extend
// the copy without affecting resolution elsewhere.
func Prefixes() map[string]string {
	out := make(map[string]string, len(prefixes))
	for p, ns := range prefixes {
		out[p] = ns
	}
	return out
}
