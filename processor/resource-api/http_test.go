package resourceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/storage"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

const (
	personClass = semlink.Namespace + "Person"
	nameEdge    = semlink.Namespace + "name"
	emailEdge   = semlink.Namespace + "email"
)

func personShape() shape.Shape {
	return shape.NewAnd(
		shape.NewClazz(personClass),
		shape.NewField(nameEdge, shape.NewMinCount(1)),
	)
}

// fakeStore is an in-memory storage.Store for handler tests.
type fakeStore struct {
	resources map[string]*storage.Resource
	creates   int
	deletes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{resources: make(map[string]*storage.Resource)}
}

func (f *fakeStore) Create(_ context.Context, id storage.ResourceID, model graph.Model) (*storage.Resource, error) {
	if _, ok := f.resources[id.String()]; ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, id)
	}
	now := time.Now().UTC()
	res := &storage.Resource{ID: id, Statements: model, CreatedAt: now, UpdatedAt: now}
	f.resources[id.String()] = res
	f.creates++
	return res, nil
}

func (f *fakeStore) Get(_ context.Context, id storage.ResourceID) (*storage.Resource, error) {
	res, ok := f.resources[id.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *res
	return &out, nil
}

func (f *fakeStore) Put(_ context.Context, id storage.ResourceID, model graph.Model) (*storage.Resource, error) {
	existing, ok := f.resources[id.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	res := &storage.Resource{ID: id, Statements: model, CreatedAt: existing.CreatedAt, UpdatedAt: time.Now().UTC()}
	f.resources[id.String()] = res
	return res, nil
}

func (f *fakeStore) Delete(_ context.Context, id storage.ResourceID) error {
	if _, ok := f.resources[id.String()]; !ok {
		return storage.ErrNotFound
	}
	delete(f.resources, id.String())
	f.deletes++
	return nil
}

func (f *fakeStore) List(_ context.Context, schemaName string) ([]storage.ResourceID, error) {
	var ids []storage.ResourceID
	for key := range f.resources {
		id, err := storage.ParseResourceID(key)
		if err != nil || id.Schema != schemaName {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })
	return ids, nil
}

// setupTestComponent creates a running Component over an in-memory store.
// The registry holds an open "person" schema and an admin-gated "contact"
// schema.
func setupTestComponent(t *testing.T) (*Component, *fakeStore) {
	t.Helper()

	reg := schema.NewRegistry()
	defs := []schema.Definition{
		{Name: "person", Class: personClass, Shape: personShape()},
		{Name: "contact", Shape: shape.NewGuard(storage.AxisRole, "admin").Then(
			shape.NewField(emailEdge, shape.NewMinCount(1)),
		)},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}

	store := newFakeStore()
	eng, err := storage.NewEngine(storage.EngineConfig{Registry: reg, Store: store})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	c := &Component{
		name: "resource-api",
		config: Config{
			Tokens: map[string][]string{
				"admin-token": {"admin"},
				"guest-token": {"guest"},
			},
		},
		logger:   slog.Default(),
		registry: reg,
		engine:   eng,
	}
	return c, store
}

// registerHandlers wires the component's handlers into a fresh mux and returns a test server.
func registerHandlers(c *Component) *httptest.Server {
	mux := http.NewServeMux()
	c.RegisterHTTPHandlers("api/resources", mux)
	return httptest.NewServer(mux)
}

func doRequest(t *testing.T, method, url, body string, header map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

const personDoc = `{
	"@context": {"name": "https://semlink.dev/ontology/name"},
	"@id": "_:doc",
	"name": "Ada Lovelace"
}`

func TestHandleSchemas(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/resources/schemas")
	if err != nil {
		t.Fatalf("GET schemas: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body SchemasResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"contact", "person"}
	if len(body.Schemas) != len(want) || body.Schemas[0] != want[0] || body.Schemas[1] != want[1] {
		t.Errorf("expected %v, got %v", want, body.Schemas)
	}
}

func TestHandleCreate_Valid(t *testing.T) {
	c, store := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}

	var body ResourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Schema != "person" {
		t.Errorf("expected schema person, got %s", body.Schema)
	}
	if !strings.HasPrefix(body.ID, "person.") {
		t.Errorf("expected minted person id, got %s", body.ID)
	}
	if got := body.Document["name"]; got != nil {
		t.Errorf("expected the context term to be expanded, found raw key: %v", got)
	}
	if got, _ := body.Document[nameEdge].(string); got != "Ada Lovelace" {
		t.Errorf("expected framed name, got %v", body.Document[nameEdge])
	}
	if got, _ := body.Document["@type"].(string); got != personClass {
		t.Errorf("expected asserted class, got %v", body.Document["@type"])
	}
	if got, _ := body.Document["@id"].(string); got != semlink.ResourceNamespace+body.ID {
		t.Errorf("expected document rooted at the resource subject, got %v", body.Document["@id"])
	}

	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "/api/resources/person/") {
		t.Errorf("unexpected Location header: %s", location)
	}
	if store.creates != 1 {
		t.Errorf("expected 1 create, got %d", store.creates)
	}
}

func TestHandleCreate_Invalid(t *testing.T) {
	c, store := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	doc := `{"@id": "_:doc", "https://semlink.dev/ontology/email": "ada@example.org"}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", doc, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	var body ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Schema != "person" {
		t.Errorf("expected schema person, got %s", body.Schema)
	}
	if body.Trace == nil || body.Trace.Empty() {
		t.Error("expected a non-empty trace")
	}
	if store.creates != 0 {
		t.Error("expected no write for an invalid document")
	}
}

func TestHandleCreate_UnknownSchema(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/ghost", personDoc, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleCreate_BadJSON(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", `{"@id`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleRetrieve(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	created := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
	var createdBody ResourceResponse
	if err := json.NewDecoder(created.Body).Decode(&createdBody); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	created.Body.Close()

	instanceID := strings.TrimPrefix(createdBody.ID, "person.")
	resp, err := http.Get(srv.URL + "/api/resources/person/" + instanceID)
	if err != nil {
		t.Fatalf("GET resource: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body ResourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != createdBody.ID {
		t.Errorf("expected id %s, got %s", createdBody.ID, body.ID)
	}
	if got, _ := body.Document[nameEdge].(string); got != "Ada Lovelace" {
		t.Errorf("expected framed name, got %v", body.Document[nameEdge])
	}
}

func TestHandleRetrieve_NotFound(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/resources/person/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleRetrieve_Turtle(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	created := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
	var createdBody ResourceResponse
	if err := json.NewDecoder(created.Body).Decode(&createdBody); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	created.Body.Close()

	instanceID := strings.TrimPrefix(createdBody.ID, "person.")
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/resources/person/"+instanceID, "",
		map[string]string{"Accept": "text/turtle"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/turtle" {
		t.Errorf("expected text/turtle, got %s", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "<"+nameEdge+">") {
		t.Errorf("expected the name predicate in turtle output:\n%s", body)
	}
	if !strings.Contains(body, `"Ada Lovelace"`) {
		t.Errorf("expected the name literal in turtle output:\n%s", body)
	}
}

func TestHandleUpdate(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	created := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
	var createdBody ResourceResponse
	if err := json.NewDecoder(created.Body).Decode(&createdBody); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	created.Body.Close()

	updateDoc := `{
		"@context": {"name": "https://semlink.dev/ontology/name"},
		"@id": "_:doc",
		"name": "Ada King"
	}`
	instanceID := strings.TrimPrefix(createdBody.ID, "person.")
	resp := doRequest(t, http.MethodPut, srv.URL+"/api/resources/person/"+instanceID, updateDoc, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}

	var body ResourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, _ := body.Document[nameEdge].(string); got != "Ada King" {
		t.Errorf("expected updated name, got %v", body.Document[nameEdge])
	}
	if !body.CreatedAt.Equal(createdBody.CreatedAt) {
		t.Error("expected creation time to be preserved across update")
	}
}

func TestHandleDelete(t *testing.T) {
	c, store := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	created := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
	var createdBody ResourceResponse
	if err := json.NewDecoder(created.Body).Decode(&createdBody); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	created.Body.Close()

	instanceID := strings.TrimPrefix(createdBody.ID, "person.")
	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/resources/person/"+instanceID, "", nil)
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if store.deletes != 1 {
		t.Errorf("expected 1 delete, got %d", store.deletes)
	}

	after, err := http.Get(srv.URL + "/api/resources/person/" + instanceID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	after.Body.Close()
	if after.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", after.StatusCode)
	}
}

func TestHandleBrowse(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/person", personDoc, nil)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/resources/person")
	if err != nil {
		t.Fatalf("GET browse: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body BrowseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Schema != "person" {
		t.Errorf("expected schema person, got %s", body.Schema)
	}
	if len(body.IDs) != 2 {
		t.Errorf("expected 2 ids, got %d", len(body.IDs))
	}
	if !strings.HasPrefix(body.Query, "SELECT DISTINCT ?this WHERE {") {
		t.Errorf("unexpected query head:\n%s", body.Query)
	}
	if !strings.Contains(body.Query, personClass) {
		t.Errorf("expected the class constraint in the query:\n%s", body.Query)
	}
}

func TestHandleBrowse_Paths(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	t.Run("sort orders the compiled query", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/resources/person?sort=" + url.QueryEscape(nameEdge))
		if err != nil {
			t.Fatalf("GET browse: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body BrowseResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.Contains(body.Query, "ORDER BY ?v1") {
			t.Errorf("expected ORDER BY clause:\n%s", body.Query)
		}
	})

	t.Run("unknown sort steps are bad requests", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/resources/person?sort=" + url.QueryEscape(emailEdge))
		if err != nil {
			t.Fatalf("GET browse: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		data, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(data), emailEdge) {
			t.Errorf("response %q does not name the step", data)
		}
	})

	t.Run("unknown filter steps are bad requests", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/resources/person?filter=" + url.QueryEscape(emailEdge))
		if err != nil {
			t.Fatalf("GET browse: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestRoleGate(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	doc := `{"@id": "_:doc", "https://semlink.dev/ontology/email": "ada@example.org"}`

	t.Run("anonymous requests are forbidden", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/contact", doc, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("the wrong role is forbidden", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/contact", doc,
			map[string]string{"Authorization": "Bearer guest-token"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("the granting role proceeds", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/resources/contact", doc,
			map[string]string{"Authorization": "Bearer admin-token"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			data, _ := io.ReadAll(resp.Body)
			t.Errorf("expected 201, got %d: %s", resp.StatusCode, data)
		}
	})
}

func TestUnknownBearerToken(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/resources/person", "",
		map[string]string{"Authorization": "Bearer forged"})
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestNotReady(t *testing.T) {
	c, _ := setupTestComponent(t)
	c.engine = nil
	srv := registerHandlers(c)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/resources/person")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	c, _ := setupTestComponent(t)
	srv := registerHandlers(c)
	defer srv.Close()

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/resources/person/1", "{}", nil)
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
