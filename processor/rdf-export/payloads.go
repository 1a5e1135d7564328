package rdfexport

import (
	"encoding/json"
	"errors"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "rdf",
		Category:    "export",
		Version:     "v1",
		Description: "Serialized RDF document for a validated resource",
		Factory:     func() any { return &Payload{} },
	})
	if err != nil {
		panic("failed to register Payload: " + err.Error())
	}
}

// RDFExportType is the message type for RDF export payloads.
var RDFExportType = message.Type{Domain: "rdf", Category: "export", Version: "v1"}

// Payload carries one resource's model serialized as an RDF document.
type Payload struct {
	ResourceID string `json:"id"`
	SchemaName string `json:"schema"`
	Format     string `json:"format"`  // turtle, ntriples, jsonld
	Content    string `json:"content"` // serialized RDF
}

// EntityID returns the resource identifier for Payload interface.
func (p *Payload) EntityID() string { return p.ResourceID }

// Schema returns the message type for Payload interface.
func (p *Payload) Schema() message.Type { return RDFExportType }

// Validate validates the payload for Payload interface.
func (p *Payload) Validate() error {
	if p.ResourceID == "" {
		return errors.New("id is required")
	}
	if p.Format == "" {
		return errors.New("format is required")
	}
	if p.Content == "" {
		return errors.New("content is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *Payload) MarshalJSON() ([]byte, error) {
	type Alias Payload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type Alias Payload
	return json.Unmarshal(data, (*Alias)(p))
}
