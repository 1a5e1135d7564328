package semlink

import (
	"strings"

	"github.com/c360studio/semstreams/vocabulary"
)

// Resource lifecycle predicates attached by the platform to every managed
// resource, alongside whatever the resource's own schema declares.
const (
	// ResourceID is the stable identifier of the resource (schema/id form).
	ResourceID = "graph.resource.id"

	// ResourceSchema names the schema the resource was validated against.
	ResourceSchema = "graph.resource.schema"

	// ResourceCreatedAt is when the resource was first stored (RFC3339).
	ResourceCreatedAt = "graph.resource.created_at"

	// ResourceUpdatedAt is when the resource was last written (RFC3339).
	ResourceUpdatedAt = "graph.resource.updated_at"

	// ResourceSource identifies the component that produced the resource.
	ResourceSource = "graph.resource.source"
)

// Validation predicates describing shape-validation outcomes.
const (
	// ValidationStatus is the outcome of a validation run.
	// Values: "valid", "invalid"
	ValidationStatus = "graph.validation.status"

	// ValidationSchema names the schema used for the run.
	ValidationSchema = "graph.validation.schema"

	// ValidationIssueCount is the number of distinct issues in the trace.
	ValidationIssueCount = "graph.validation.issue_count"
)

func init() {
	vocabulary.Register(ResourceID,
		vocabulary.WithDescription("Stable resource identifier in schema/id form"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"resourceID"))

	vocabulary.Register(ResourceSchema,
		vocabulary.WithDescription("Schema the resource was validated against"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"resourceSchema"))

	vocabulary.Register(ResourceCreatedAt,
		vocabulary.WithDescription("Resource creation timestamp (RFC3339)"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(Namespace+"createdAt"))

	vocabulary.Register(ResourceUpdatedAt,
		vocabulary.WithDescription("Resource last-write timestamp (RFC3339)"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(Namespace+"updatedAt"))

	vocabulary.Register(ResourceSource,
		vocabulary.WithDescription("Component that produced the resource"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"source"))

	vocabulary.Register(ValidationStatus,
		vocabulary.WithDescription("Validation outcome: valid or invalid"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"validationStatus"))

	vocabulary.Register(ValidationSchema,
		vocabulary.WithDescription("Schema used for the validation run"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"validationSchema"))

	vocabulary.Register(ValidationIssueCount,
		vocabulary.WithDescription("Number of distinct issues in the validation trace"),
		vocabulary.WithDataType("integer"),
		vocabulary.WithIRI(Namespace+"issueCount"))
}

// dottedIRIs maps the platform's dotted predicates to their ontology IRIs
// for query fragments and RDF export.
var dottedIRIs = map[string]string{
	ResourceID:           Namespace + "resourceID",
	ResourceSchema:       Namespace + "resourceSchema",
	ResourceCreatedAt:    Namespace + "createdAt",
	ResourceUpdatedAt:    Namespace + "updatedAt",
	ResourceSource:       Namespace + "source",
	ValidationStatus:     Namespace + "validationStatus",
	ValidationSchema:     Namespace + "validationSchema",
	ValidationIssueCount: Namespace + "issueCount",
}

// PredicateIRI resolves an edge identifier to an absolute IRI. Identifiers
// may be absolute IRIs (returned as-is), prefixed names using the built-in
// prefix table (rdf:, rdfs:, xsd:, owl:, semlink:), registered dotted
// predicates, or bare names (resolved under the semlink namespace).
func PredicateIRI(name string) string {
	if strings.Contains(name, "://") {
		return name
	}
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		if ns, known := prefixes[prefix]; known {
			return ns + local
		}
	}
	if iri, ok := dottedIRIs[name]; ok {
		return iri
	}
	return Namespace + name
}
