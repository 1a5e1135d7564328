package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semlink/graph"
)

const (
	defaultQueryTimeout = 10 * time.Second

	// maxErrorBodySize caps how much of an endpoint error body is read.
	maxErrorBodySize = 4096
)

// SPARQLClient executes queries against an external SPARQL endpoint over
// the standard protocol.
type SPARQLClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewSPARQLClient creates a client for the given endpoint URL. A
// non-positive timeout falls back to the default.
func NewSPARQLClient(endpoint string, timeout time.Duration) *SPARQLClient {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &SPARQLClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BuildSelect wraps a compiled constraint fragment into a complete SELECT
// query over the root anchor. Fragments carry absolute IRIs, so no prefix
// prologue is needed. A positive limit adds a LIMIT clause.
func BuildSelect(fragment string, limit int) string {
	return buildSelect(fragment, "", limit)
}

// BuildSelectOrdered is BuildSelect with the results ordered by one bound
// variable. The variable is projected alongside the root anchor; DISTINCT
// forbids ordering by anything outside the projection.
func BuildSelectOrdered(fragment, orderVar string, limit int) string {
	return buildSelect(fragment, orderVar, limit)
}

func buildSelect(fragment, orderVar string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?this")
	if orderVar != "" {
		b.WriteString(" " + orderVar)
	}
	b.WriteString(" WHERE {\n")
	b.WriteString(indentFragment(fragment))
	b.WriteString("}")
	if orderVar != "" {
		b.WriteString("\nORDER BY " + orderVar)
	}
	if limit > 0 {
		b.WriteString("\nLIMIT " + strconv.Itoa(limit))
	}
	b.WriteString("\n")
	return b.String()
}

// BuildAsk wraps a compiled constraint fragment into an ASK query. A
// non-zero focus binds the root anchor to that term.
func BuildAsk(fragment string, focus graph.Value) string {
	var b strings.Builder
	b.WriteString("ASK {\n")
	if !focus.IsZero() {
		b.WriteString("  BIND(" + focus.Term() + " AS ?this)\n")
	}
	b.WriteString(indentFragment(fragment))
	b.WriteString("}\n")
	return b.String()
}

// Select executes a SELECT query and decodes the result bindings, one row
// per solution keyed by variable name.
func (c *SPARQLClient) Select(ctx context.Context, query string) ([]map[string]graph.Value, error) {
	resp, err := c.post(ctx, query)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]graph.Value, 0, len(resp.Results.Bindings))
	for _, binding := range resp.Results.Bindings {
		row := make(map[string]graph.Value, len(binding))
		for name, term := range binding {
			row[name] = term.value()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Ask executes an ASK query.
func (c *SPARQLClient) Ask(ctx context.Context, query string) (bool, error) {
	resp, err := c.post(ctx, query)
	if err != nil {
		return false, err
	}
	if resp.Boolean == nil {
		return false, fmt.Errorf("sparql endpoint returned no boolean for ASK")
	}
	return *resp.Boolean, nil
}

func (c *SPARQLClient) post(ctx context.Context, query string) (*sparqlResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("sparql endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var out sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// sparqlResponse is the application/sparql-results+json envelope. SELECT
// fills Head and Results, ASK fills Boolean.
type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]sparqlTerm `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

type sparqlTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

func (t sparqlTerm) value() graph.Value {
	switch t.Type {
	case "uri":
		return graph.NewIRI(t.Value)
	case "bnode":
		return graph.NewBNode(t.Value)
	default:
		if t.Datatype != "" {
			return graph.NewLiteral(t.Value, t.Datatype)
		}
		return graph.NewString(t.Value)
	}
}

func indentFragment(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
