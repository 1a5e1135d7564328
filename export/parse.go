package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/vocabulary/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Unframe converts a framed JSON document into statements, returning the
// root node's subject. Nodes without an "@id" get minted blank nodes. Keys
// expand through the document's "@context" and the registered prefixes;
// anything else passes through unchanged. "@reverse" blocks become
// statements pointing at the node.
func Unframe(data []byte) (graph.Value, graph.Model, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return graph.Value{}, nil, fmt.Errorf("failed to parse document: %w", err)
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return graph.Value{}, nil, fmt.Errorf("document must be a JSON object")
	}

	u := &unframer{
		context:  make(map[string]string),
		prefixes: semlink.Prefixes(),
		seen:     make(map[graph.Statement]bool),
	}
	if err := u.addContext(root["@context"]); err != nil {
		return graph.Value{}, nil, err
	}
	focus, err := u.node(root)
	if err != nil {
		return graph.Value{}, nil, err
	}
	return focus, u.statements, nil
}

type unframer struct {
	context    map[string]string
	prefixes   map[string]string
	statements graph.Model
	seen       map[graph.Statement]bool
}

func (u *unframer) addContext(raw any) error {
	if raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("@context must be an object")
	}
	for key, val := range m {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("@context entry %q must be a string", key)
		}
		u.context[key] = s
	}
	return nil
}

// node emits the statements of one document node and returns its subject.
// Keys are processed in sorted order so output is deterministic.
func (u *unframer) node(m map[string]any) (graph.Value, error) {
	subject, err := u.subject(m)
	if err != nil {
		return graph.Value{}, err
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := m[key]
		switch key {
		case "@context", "@id":
			continue
		case "@type":
			if err := u.types(subject, val); err != nil {
				return graph.Value{}, err
			}
			continue
		case "@reverse":
			if err := u.reverse(subject, val); err != nil {
				return graph.Value{}, err
			}
			continue
		}

		pred := u.expand(key)
		for _, item := range items(val) {
			object, err := u.value(item)
			if err != nil {
				return graph.Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			u.add(graph.NewStatement(subject, pred, object))
		}
	}
	return subject, nil
}

func (u *unframer) subject(m map[string]any) (graph.Value, error) {
	raw, ok := m["@id"]
	if !ok {
		return graph.NewBlank(), nil
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return graph.Value{}, fmt.Errorf("@id must be a non-empty string")
	}
	if label, isBlank := strings.CutPrefix(id, "_:"); isBlank {
		return graph.NewBNode(label), nil
	}
	return graph.NewIRI(id), nil
}

func (u *unframer) types(subject graph.Value, raw any) error {
	for _, item := range items(raw) {
		name, ok := item.(string)
		if !ok {
			return fmt.Errorf("@type must hold strings")
		}
		u.add(graph.NewStatement(subject, rdf.Type, graph.NewIRI(u.expand(name))))
	}
	return nil
}

func (u *unframer) reverse(focus graph.Value, raw any) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("@reverse must be an object")
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pred := u.expand(key)
		for _, item := range items(m[key]) {
			node, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("@reverse %q: values must be objects", key)
			}
			source, err := u.node(node)
			if err != nil {
				return err
			}
			u.add(graph.NewStatement(source, pred, focus))
		}
	}
	return nil
}

// value converts one object position: nested nodes recurse, everything
// else parses as a JSON-LD value.
func (u *unframer) value(raw any) (graph.Value, error) {
	if m, ok := raw.(map[string]any); ok && isNode(m) {
		return u.node(m)
	}
	return graph.FromNative(raw)
}

// isNode distinguishes nested nodes from value objects: a "@value" map is
// a literal and a lone "@id" is a reference.
func isNode(m map[string]any) bool {
	if _, ok := m["@value"]; ok {
		return false
	}
	if len(m) == 1 {
		if _, ok := m["@id"]; ok {
			return false
		}
	}
	return true
}

func (u *unframer) add(st graph.Statement) {
	if u.seen[st] {
		return
	}
	u.seen[st] = true
	u.statements = append(u.statements, st)
}

// expand resolves a document key: exact context terms first, then prefixed
// names against the context and the registered prefixes. Absolute IRIs and
// unknown names pass through, so dotted vocabulary predicates survive.
func (u *unframer) expand(name string) string {
	if iri, ok := u.context[name]; ok {
		return iri
	}
	if strings.Contains(name, "://") {
		return name
	}
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		if ns, known := u.context[prefix]; known {
			return ns + local
		}
		if ns, known := u.prefixes[prefix]; known {
			return ns + local
		}
	}
	return name
}

func items(raw any) []any {
	if list, ok := raw.([]any); ok {
		return list
	}
	return []any{raw}
}
