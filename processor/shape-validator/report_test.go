package shapevalidator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/c360studio/semlink/shape"
)

// TestValidationReport_RoundTrip verifies that a report with a trace
// survives a JSON round-trip.
func TestValidationReport_RoundTrip(t *testing.T) {
	trace := shape.NewTrace()
	sub := shape.NewTrace()
	sub.Issue("minCount")
	trace.Sub(titleEdge, sub)

	report := &ValidationReport{
		ResourceID_: "article.1",
		SchemaName:  "article",
		Trace:       trace,
		CheckedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	var decoded ValidationReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}

	if decoded.ResourceID_ != "article.1" {
		t.Errorf("expected id=article.1, got %q", decoded.ResourceID_)
	}
	if decoded.SchemaName != "article" {
		t.Errorf("expected schema=article, got %q", decoded.SchemaName)
	}
	if decoded.Trace == nil {
		t.Fatal("expected trace preserved")
	}
	if decoded.Trace.Fields[titleEdge] == nil {
		t.Errorf("expected sub-trace for title field, got %s", decoded.Trace)
	}
}

// TestValidationReport_ReasonOmitsTrace verifies that a reason-only report
// serializes without a trace key.
func TestValidationReport_ReasonOmitsTrace(t *testing.T) {
	report := &ValidationReport{
		ResourceID_: "ghost.1",
		SchemaName:  "ghost",
		Reason:      ReasonUnknownSchema,
		CheckedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["trace"]; ok {
		t.Error("expected trace key omitted for a reason-only report")
	}
	if _, ok := raw["reason"]; !ok {
		t.Error("expected reason key present")
	}
}

// TestValidationReport_Validate verifies the validation logic.
func TestValidationReport_Validate(t *testing.T) {
	report := &ValidationReport{}
	if err := report.Validate(); err == nil {
		t.Error("expected error for empty resource id")
	}

	report.ResourceID_ = "article.1"
	if err := report.Validate(); err == nil {
		t.Error("expected error for empty schema name")
	}

	report.SchemaName = "article"
	if err := report.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestValidationReport_Schema verifies the report schema matches registration.
func TestValidationReport_Schema(t *testing.T) {
	report := &ValidationReport{
		ResourceID_: "article.1",
		SchemaName:  "article",
		Trace:       shape.NewTrace(),
	}

	schema := report.Schema()
	if schema.Domain != "graph" {
		t.Errorf("expected Domain=graph, got %q", schema.Domain)
	}
	if schema.Category != "validation-report" {
		t.Errorf("expected Category=validation-report, got %q", schema.Category)
	}
	if schema.Version != "v1" {
		t.Errorf("expected Version=v1, got %q", schema.Version)
	}
	if report.EntityID() != "article.1" {
		t.Errorf("expected EntityID=article.1, got %q", report.EntityID())
	}
}
