package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semlink/vocabulary/semlink"
	"github.com/c360studio/semstreams/natsclient"
)

// Stream subjects for resource flow through the GRAPH stream.
const (
	// IngestSubject receives resources submitted for validation.
	IngestSubject = "graph.ingest.resource"

	// ValidSubject receives resources that passed shape validation,
	// carrying their trimmed models.
	ValidSubject = "graph.resource.valid"

	// InvalidSubject receives validation reports for rejected resources.
	InvalidSubject = "graph.resource.invalid"
)

// PublishResource publishes a resource model to the ingest stream. A nil
// client is a no-op so offline tools degrade gracefully.
func PublishResource(ctx context.Context, nc *natsclient.Client, id, schema string, model Model) error {
	if nc == nil {
		return nil
	}

	payload := ResourcePayload{
		ResourceID_: id,
		SchemaName:  schema,
		Statements:  model,
		UpdatedAt:   time.Now(),
	}

	data, err := json.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("marshal resource %s: %w", id, err)
	}

	if err := nc.PublishToStream(ctx, IngestSubject, data); err != nil {
		return fmt.Errorf("publish resource %s: %w", id, err)
	}

	return nil
}

// ResourceIRI returns the IRI value identifying a stored resource.
func ResourceIRI(id string) Value {
	return NewIRI(semlink.ResourceNamespace + id)
}
