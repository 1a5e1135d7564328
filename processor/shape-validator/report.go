package shapevalidator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/semlink/shape"
)

// ValidationReport is published to graph.resource.invalid for resources the
// ingest pipeline rejected. It carries the trace diagnosing which
// constraints failed, or a reason when validation never ran.
type ValidationReport struct {
	ResourceID_ string       `json:"id"`
	SchemaName  string       `json:"schema"`
	Reason      string       `json:"reason,omitempty"`
	Trace       *shape.Trace `json:"trace,omitempty"`
	CheckedAt   time.Time    `json:"checked_at"`
}

// Rejection reasons for reports without a trace.
const (
	ReasonUnknownSchema = "unknown schema"
	ReasonNotVisible    = "schema not visible to the ingest context"
)

// ValidationReportType is the message type for validation reports.
var ValidationReportType = message.Type{
	Domain:   "graph",
	Category: "validation-report",
	Version:  "v1",
}

// EntityID implements message.Payload.
func (p *ValidationReport) EntityID() string { return p.ResourceID_ }

// Schema implements message.Payload.
func (p *ValidationReport) Schema() message.Type {
	return ValidationReportType
}

// Validate implements message.Payload.
func (p *ValidationReport) Validate() error {
	if p.ResourceID_ == "" {
		return fmt.Errorf("resource id is required")
	}
	if p.SchemaName == "" {
		return fmt.Errorf("schema name is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ValidationReport) MarshalJSON() ([]byte, error) {
	type Alias ValidationReport
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ValidationReport) UnmarshalJSON(data []byte) error {
	type Alias ValidationReport
	return json.Unmarshal(data, (*Alias)(p))
}

func init() {
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "graph",
		Category:    "validation-report",
		Version:     "v1",
		Description: "Shape validation report for a rejected resource",
		Factory:     func() any { return &ValidationReport{} },
	}); err != nil {
		panic("failed to register ValidationReport: " + err.Error())
	}
}
