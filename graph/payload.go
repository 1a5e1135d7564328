package graph

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "graph",
		Category:    "resource",
		Version:     "v1",
		Description: "Shape-managed resource payload carrying its statement model",
		Factory:     func() any { return &ResourcePayload{} },
	})
	if err != nil {
		panic("failed to register ResourcePayload: " + err.Error())
	}
}

// ResourceType is the message type for resource payloads.
var ResourceType = message.Type{Domain: "graph", Category: "resource", Version: "v1"}

// ResourcePayload implements message.Payload and graph.Graphable for
// shape-managed resources moving through the platform streams.
type ResourcePayload struct {
	ResourceID_ string    `json:"id"`
	SchemaName  string    `json:"schema"`
	Statements  Model     `json:"statements"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *ResourcePayload) EntityID() string     { return r.ResourceID_ }
func (r *ResourcePayload) Schema() message.Type { return ResourceType }

// Triples renders the model as semstreams triples for ecosystem consumers.
func (r *ResourcePayload) Triples() []message.Triple {
	out := make([]message.Triple, 0, len(r.Statements))
	for _, s := range r.Statements {
		out = append(out, s.Triple("semlink."+r.SchemaName, r.UpdatedAt))
	}
	return out
}

func (r *ResourcePayload) Validate() error {
	if r.ResourceID_ == "" {
		return errors.New("resource ID is required")
	}
	if r.SchemaName == "" {
		return errors.New("schema name is required")
	}
	return nil
}

func (r *ResourcePayload) MarshalJSON() ([]byte, error) {
	type Alias ResourcePayload
	return json.Marshal((*Alias)(r))
}

func (r *ResourcePayload) UnmarshalJSON(data []byte) error {
	type Alias ResourcePayload
	return json.Unmarshal(data, (*Alias)(r))
}
