// Package storage persists shape-managed resources in NATS JetStream KV
// and drives the shape pipeline for every resource operation.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// BucketResources is the KV bucket holding resource models.
const BucketResources = "SEMLINK_RESOURCES"

// ResourceID identifies a stored resource by schema name and instance id.
type ResourceID struct {
	Schema string
	ID     string
}

// NewResourceID mints a fresh id under the given schema.
func NewResourceID(schema string) ResourceID {
	return ResourceID{Schema: schema, ID: uuid.New().String()}
}

// ParseResourceID parses the "schema.id" key form. Schema names must not
// contain dots.
func ParseResourceID(s string) (ResourceID, error) {
	schema, id, ok := strings.Cut(s, ".")
	if !ok || schema == "" || id == "" {
		return ResourceID{}, fmt.Errorf("invalid resource id format: %s", s)
	}
	return ResourceID{Schema: schema, ID: id}, nil
}

// String returns the "schema.id" form used as the KV key.
func (r ResourceID) String() string {
	return r.Schema + "." + r.ID
}

// IRI returns the resource's subject IRI. The tail is the same "schema.id"
// form used as the KV key, so payload ids round-trip to subjects.
func (r ResourceID) IRI() string {
	return semlink.ResourceNamespace + r.String()
}

// Subject returns the resource's subject as a graph value.
func (r ResourceID) Subject() graph.Value {
	return graph.NewIRI(r.IRI())
}

// Resource is a stored resource model with its write metadata.
type Resource struct {
	ID         ResourceID
	Statements graph.Model
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// storedResource is the KV wire form.
type storedResource struct {
	ID         string      `json:"id"`
	Schema     string      `json:"schema"`
	Statements graph.Model `json:"statements"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ResourceStore persists resource models in a JetStream KV bucket.
type ResourceStore struct {
	kv jetstream.KeyValue
}

// NewResourceStore opens the resource bucket, creating it if needed.
func NewResourceStore(ctx context.Context, js jetstream.JetStream) (*ResourceStore, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketResources)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource bucket: %w", err)
	}
	return &ResourceStore{kv: kv}, nil
}

// getOrCreateBucket retrieves an existing bucket or creates it.
func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Semlink resource models",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return kv, nil
}

// Create stores a new resource. Returns ErrAlreadyExists if the key is
// taken.
func (s *ResourceStore) Create(ctx context.Context, id ResourceID, model graph.Model) (*Resource, error) {
	now := time.Now().UTC()
	data, err := json.Marshal(storedResource{
		ID:         id.ID,
		Schema:     id.Schema,
		Statements: model,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	if _, err := s.kv.Create(ctx, id.String(), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		return nil, fmt.Errorf("failed to store resource: %w", err)
	}

	return &Resource{ID: id, Statements: model, CreatedAt: now, UpdatedAt: now}, nil
}

// Get retrieves a resource by id.
func (s *ResourceStore) Get(ctx context.Context, id ResourceID) (*Resource, error) {
	entry, err := s.kv.Get(ctx, id.String())
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	var rec storedResource
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource: %w", err)
	}

	return &Resource{
		ID:         id,
		Statements: rec.Statements,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

// Put replaces an existing resource's model, preserving its creation time.
// Returns ErrNotFound if the resource does not exist.
func (s *ResourceStore) Put(ctx context.Context, id ResourceID, model graph.Model) (*Resource, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	data, err := json.Marshal(storedResource{
		ID:         id.ID,
		Schema:     id.Schema,
		Statements: model,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	if _, err := s.kv.Put(ctx, id.String(), data); err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}

	return &Resource{ID: id, Statements: model, CreatedAt: existing.CreatedAt, UpdatedAt: now}, nil
}

// Delete removes a resource. Returns ErrNotFound if it does not exist.
func (s *ResourceStore) Delete(ctx context.Context, id ResourceID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, id.String()); err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}

// List returns the ids stored under a schema, sorted by instance id.
func (s *ResourceStore) List(ctx context.Context, schema string) ([]ResourceID, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	prefix := schema + "."
	var ids []ResourceID
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		id, err := ParseResourceID(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })
	return ids, nil
}
