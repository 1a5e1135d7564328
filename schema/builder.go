package schema

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Document is one parsed shape file.
type Document struct {
	Name  string
	Class string
	Shape shape.Shape
}

// Build parses a declarative shape file into a Document.
//
// A shape file is a YAML mapping with `schema` (the registry name), an
// optional `class` (the rdf:type IRI asserted for instances), an optional
// `prefixes` mapping extending the built-in prefix table, and `shape` (the
// root shape node).
//
// A shape node is a mapping with one key per node kind; a node with several
// keys is the conjunction of its entries in document order. Field mappings
// accept constraint keys inline, so
//
//	field:
//	  edge: foaf:name
//	  minCount: 1
//	  datatype: xsd:string
//
// constrains the edge's targets with the conjunction of the shorthand
// entries. The `fields` key declares several fields at once, keyed by edge
// name; a `^` prefix marks the edge as inverse, matching path-step syntax.
// YAML anchors and aliases work as usual, so shared fragments can be
// declared once and referenced.
//
// Prefixed names expand through the merged prefix table at build time;
// unknown prefixes are an error. Dotted and bare edge names pass through
// for render-time vocabulary resolution.
func Build(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse shape file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse shape file: empty document")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errf(top, "shape file must be a mapping")
	}

	var (
		name      string
		classNode *yaml.Node
		shapeNode *yaml.Node
	)
	b := &builder{prefixes: semlink.Prefixes()}

	// Collect prefixes before expanding anything that references them,
	// whatever the key order in the file.
	for i := 0; i < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]
		switch key.Value {
		case "schema":
			name = val.Value
		case "class":
			classNode = val
		case "prefixes":
			if err := b.addPrefixes(val); err != nil {
				return nil, err
			}
		case "shape":
			shapeNode = val
		default:
			return nil, errf(key, "unknown top-level key %q", key.Value)
		}
	}

	if name == "" {
		return nil, errf(top, "schema name is required")
	}
	doc := &Document{Name: name}
	if classNode != nil {
		class, err := b.iri(classNode, classNode.Value)
		if err != nil {
			return nil, fmt.Errorf("schema %q: class: %w", name, err)
		}
		doc.Class = class
	}
	if shapeNode == nil {
		return nil, fmt.Errorf("schema %q: shape is required", name)
	}
	s, err := b.node(shapeNode)
	if err != nil {
		return nil, fmt.Errorf("schema %q: shape: %w", name, err)
	}
	doc.Shape = s
	return doc, nil
}

type builder struct {
	prefixes map[string]string
}

func (b *builder) addPrefixes(n *yaml.Node) error {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return errf(n, "prefixes must be a mapping")
	}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Value == "" || val.Kind != yaml.ScalarNode || !strings.Contains(val.Value, "://") {
			return errf(val, "prefix %q must map to a namespace IRI", key.Value)
		}
		b.prefixes[key.Value] = val.Value
	}
	return nil
}

// node parses one shape node.
func (b *builder) node(n *yaml.Node) (shape.Shape, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, errf(n, "shape node must be a mapping")
	}
	if len(n.Content) == 0 {
		return nil, errf(n, "shape node must not be empty")
	}
	ops := make([]shape.Shape, 0, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		s, err := b.kind(n.Content[i].Value, n.Content[i+1])
		if err != nil {
			return nil, err
		}
		ops = append(ops, s)
	}
	if len(ops) == 1 {
		return ops[0], nil
	}
	return shape.NewAnd(ops...), nil
}

// kind parses the node kind named by one mapping key.
func (b *builder) kind(key string, n *yaml.Node) (shape.Shape, error) {
	n = deref(n)
	switch key {
	case "datatype":
		iri, err := b.datatype(n)
		if err != nil {
			return nil, err
		}
		return shape.NewDatatype(iri), nil

	case "class":
		iri, err := b.iri(n, n.Value)
		if err != nil {
			return nil, err
		}
		return shape.NewClazz(iri), nil

	case "minExclusive", "maxExclusive", "minInclusive", "maxInclusive":
		v, err := b.value(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "minExclusive":
			return shape.NewMinExclusive(v), nil
		case "maxExclusive":
			return shape.NewMaxExclusive(v), nil
		case "minInclusive":
			return shape.NewMinInclusive(v), nil
		default:
			return shape.NewMaxInclusive(v), nil
		}

	case "minLength", "maxLength", "minCount", "maxCount":
		limit, err := intScalar(n, key)
		if err != nil {
			return nil, err
		}
		switch key {
		case "minLength":
			return shape.NewMinLength(limit), nil
		case "maxLength":
			return shape.NewMaxLength(limit), nil
		case "minCount":
			return shape.NewMinCount(limit), nil
		default:
			return shape.NewMaxCount(limit), nil
		}

	case "pattern":
		return b.pattern(n)

	case "like":
		if n.Kind != yaml.ScalarNode || strings.TrimSpace(n.Value) == "" {
			return nil, errf(n, "like requires keywords")
		}
		return shape.NewLike(n.Value), nil

	case "stem":
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			return nil, errf(n, "stem requires a prefix")
		}
		return shape.NewStem(n.Value), nil

	case "all", "any", "in":
		values, err := b.values(n, key)
		if err != nil {
			return nil, err
		}
		switch key {
		case "all":
			return shape.NewAll(values...), nil
		case "any":
			return shape.NewAny(values...), nil
		default:
			return shape.NewIn(values...), nil
		}

	case "field":
		return b.field(n)

	case "link":
		return b.link(n)

	case "fields":
		return b.fields(n)

	case "and", "or":
		ops, err := b.nodes(n, key)
		if err != nil {
			return nil, err
		}
		if key == "and" {
			return shape.NewAnd(ops...), nil
		}
		return shape.NewOr(ops...), nil

	case "when":
		return b.when(n)

	case "guard":
		return b.guard(n)

	case "meta":
		return b.meta(n)

	default:
		return nil, errf(n, "unknown shape key %q", key)
	}
}

func (b *builder) pattern(n *yaml.Node) (shape.Shape, error) {
	var expr, flags string
	switch n.Kind {
	case yaml.ScalarNode:
		expr = n.Value
	case yaml.MappingNode:
		for i := 0; i < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			switch key.Value {
			case "expr":
				expr = val.Value
			case "flags":
				flags = val.Value
			default:
				return nil, errf(key, "unknown pattern key %q", key.Value)
			}
		}
	default:
		return nil, errf(n, "pattern must be a string or a mapping with expr and flags")
	}
	if _, err := shape.CompilePattern(expr, flags); err != nil {
		return nil, errf(n, "pattern: %v", err)
	}
	return shape.NewPattern(expr, flags), nil
}

// field parses a field mapping. Recognized keys are edge, inverse, and
// shape; any other key is constraint shorthand for the nested shape.
func (b *builder) field(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errf(n, "field must be a mapping")
	}
	var edge string
	var inverse bool
	var ops []shape.Shape
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], deref(n.Content[i+1])
		switch key.Value {
		case "edge":
			e, err := b.edge(val, val.Value)
			if err != nil {
				return nil, err
			}
			edge = e
		case "inverse":
			if err := val.Decode(&inverse); err != nil {
				return nil, errf(val, "inverse must be a boolean")
			}
		case "shape":
			sub, err := b.node(val)
			if err != nil {
				return nil, err
			}
			ops = append(ops, sub)
		default:
			sub, err := b.kind(key.Value, val)
			if err != nil {
				return nil, err
			}
			ops = append(ops, sub)
		}
	}
	if edge == "" {
		return nil, errf(n, "field requires an edge")
	}
	if inverse {
		return shape.NewInverseField(edge, ops...), nil
	}
	return shape.NewField(edge, ops...), nil
}

// link parses a link mapping, same form as field minus the inverse flag.
func (b *builder) link(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errf(n, "link must be a mapping")
	}
	var edge string
	var ops []shape.Shape
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], deref(n.Content[i+1])
		switch key.Value {
		case "edge":
			e, err := b.edge(val, val.Value)
			if err != nil {
				return nil, err
			}
			edge = e
		case "shape":
			sub, err := b.node(val)
			if err != nil {
				return nil, err
			}
			ops = append(ops, sub)
		default:
			sub, err := b.kind(key.Value, val)
			if err != nil {
				return nil, err
			}
			ops = append(ops, sub)
		}
	}
	if edge == "" {
		return nil, errf(n, "link requires an edge")
	}
	return shape.NewLink(edge, ops...), nil
}

// fields declares several fields at once, keyed by edge name. A null value
// leaves the field unconstrained.
func (b *builder) fields(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, errf(n, "fields must be a non-empty mapping")
	}
	ops := make([]shape.Shape, 0, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], deref(n.Content[i+1])
		name := strings.TrimPrefix(key.Value, "^")
		edge, err := b.edge(key, name)
		if err != nil {
			return nil, err
		}
		var nested []shape.Shape
		if !isNull(val) {
			sub, err := b.node(val)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key.Value, err)
			}
			nested = append(nested, sub)
		}
		if strings.HasPrefix(key.Value, "^") {
			ops = append(ops, shape.NewInverseField(edge, nested...))
		} else {
			ops = append(ops, shape.NewField(edge, nested...))
		}
	}
	if len(ops) == 1 {
		return ops[0], nil
	}
	return shape.NewAnd(ops...), nil
}

func (b *builder) when(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errf(n, "when must be a mapping")
	}
	var test shape.Shape
	pass, fail := shape.NewAnd(), shape.NewAnd()
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "test", "pass", "fail":
			sub, err := b.node(val)
			if err != nil {
				return nil, fmt.Errorf("when.%s: %w", key.Value, err)
			}
			switch key.Value {
			case "test":
				test = sub
			case "pass":
				pass = sub
			default:
				fail = sub
			}
		default:
			return nil, errf(key, "unknown when key %q", key.Value)
		}
	}
	if test == nil {
		return nil, errf(n, "when requires a test")
	}
	return shape.NewWhen(test, pass, fail), nil
}

// guard parses a guard mapping; `then` composes the guarded body.
func (b *builder) guard(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errf(n, "guard must be a mapping")
	}
	var axis string
	var tokens []string
	var thenNode *yaml.Node
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], deref(n.Content[i+1])
		switch key.Value {
		case "axis":
			axis = val.Value
		case "tokens":
			if err := val.Decode(&tokens); err != nil {
				return nil, errf(val, "tokens must be a sequence of strings")
			}
		case "then":
			thenNode = val
		default:
			return nil, errf(key, "unknown guard key %q", key.Value)
		}
	}
	if axis == "" {
		return nil, errf(n, "guard requires an axis")
	}
	if len(tokens) == 0 {
		return nil, errf(n, "guard requires at least one token")
	}
	for _, tok := range tokens {
		if tok == "" {
			return nil, errf(n, "guard tokens must not be empty")
		}
	}
	g := shape.NewGuard(axis, tokens...)
	if thenNode == nil {
		return g, nil
	}
	body, err := b.node(thenNode)
	if err != nil {
		return nil, fmt.Errorf("guard.then: %w", err)
	}
	return g.Then(body), nil
}

// meta parses annotation pairs in document order.
func (b *builder) meta(n *yaml.Node) (shape.Shape, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, errf(n, "meta must be a non-empty mapping")
	}
	ops := make([]shape.Shape, 0, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], deref(n.Content[i+1])
		if key.Value == "" {
			return nil, errf(key, "meta key must not be empty")
		}
		if val.Kind != yaml.ScalarNode {
			return nil, errf(val, "meta %q must be a scalar", key.Value)
		}
		ops = append(ops, shape.NewMeta(key.Value, val.Value))
	}
	if len(ops) == 1 {
		return ops[0], nil
	}
	return shape.NewAnd(ops...), nil
}

func (b *builder) nodes(n *yaml.Node, what string) ([]shape.Shape, error) {
	n = deref(n)
	if n.Kind != yaml.SequenceNode {
		return nil, errf(n, "%s must be a sequence of shape nodes", what)
	}
	out := make([]shape.Shape, 0, len(n.Content))
	for i, item := range n.Content {
		sub, err := b.node(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", what, i, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

func (b *builder) values(n *yaml.Node, what string) ([]graph.Value, error) {
	n = deref(n)
	if n.Kind != yaml.SequenceNode {
		return nil, errf(n, "%s must be a sequence of values", what)
	}
	out := make([]graph.Value, 0, len(n.Content))
	for _, item := range n.Content {
		v, err := b.value(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// value converts a YAML scalar or tagged mapping into a graph value.
// Scalars become literals of their YAML type; `{iri: ...}` names a
// resource, `{literal: ..., datatype: ...}` a typed literal.
func (b *builder) value(n *yaml.Node) (graph.Value, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!str":
			return graph.NewString(n.Value), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return graph.Value{}, errf(n, "invalid integer %q", n.Value)
			}
			return graph.NewInteger(i), nil
		case "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return graph.Value{}, errf(n, "invalid number %q", n.Value)
			}
			return graph.NewDecimal(f), nil
		case "!!bool":
			var v bool
			if err := n.Decode(&v); err != nil {
				return graph.Value{}, errf(n, "invalid boolean %q", n.Value)
			}
			return graph.NewBoolean(v), nil
		case "!!timestamp":
			var t time.Time
			if err := n.Decode(&t); err != nil {
				return graph.Value{}, errf(n, "invalid timestamp %q", n.Value)
			}
			return graph.NewDateTime(t), nil
		default:
			return graph.Value{}, errf(n, "unsupported value %q", n.Value)
		}

	case yaml.MappingNode:
		var iriNode, lexNode, dtNode *yaml.Node
		for i := 0; i < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			switch key.Value {
			case "iri":
				iriNode = val
			case "literal":
				lexNode = val
			case "datatype":
				dtNode = val
			default:
				return graph.Value{}, errf(key, "unknown value key %q", key.Value)
			}
		}
		if iriNode != nil {
			if lexNode != nil || dtNode != nil {
				return graph.Value{}, errf(n, "iri value takes no other keys")
			}
			iri, err := b.iri(iriNode, iriNode.Value)
			if err != nil {
				return graph.Value{}, err
			}
			return graph.NewIRI(iri), nil
		}
		if lexNode == nil || dtNode == nil {
			return graph.Value{}, errf(n, "typed literal requires literal and datatype")
		}
		dt, err := b.iri(dtNode, dtNode.Value)
		if err != nil {
			return graph.Value{}, err
		}
		return graph.NewLiteral(lexNode.Value, dt), nil

	default:
		return graph.Value{}, errf(n, "value must be a scalar or a tagged mapping")
	}
}

// Node-kind keywords accepted by the datatype key.
var datatypeKeywords = map[string]string{
	"value":    semlink.ValueTerm,
	"resource": semlink.ResourceTerm,
	"iri":      semlink.IRITerm,
	"bnode":    semlink.BNodeTerm,
	"literal":  semlink.LiteralTerm,
}

func (b *builder) datatype(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", errf(n, "datatype requires an IRI or node-kind keyword")
	}
	if iri, ok := datatypeKeywords[n.Value]; ok {
		return iri, nil
	}
	return b.iri(n, n.Value)
}

// expand resolves a prefixed name through the prefix table. Absolute IRIs
// pass through; names without a prefix are returned unchanged.
func (b *builder) expand(n *yaml.Node, term string) (string, error) {
	if strings.Contains(term, "://") {
		return term, nil
	}
	if prefix, local, ok := strings.Cut(term, ":"); ok {
		if ns, known := b.prefixes[prefix]; known {
			return ns + local, nil
		}
		return "", errf(n, "unknown prefix %q in %q", prefix, term)
	}
	return term, nil
}

// iri expands a term that must resolve to an absolute IRI; dotted and bare
// names resolve through the platform vocabulary.
func (b *builder) iri(n *yaml.Node, term string) (string, error) {
	if term == "" {
		return "", errf(n, "IRI must not be empty")
	}
	expanded, err := b.expand(n, term)
	if err != nil {
		return "", err
	}
	if !strings.Contains(expanded, "://") {
		expanded = semlink.PredicateIRI(expanded)
	}
	return expanded, nil
}

// edge expands an edge identifier. Dotted and bare names stay as written
// for render-time vocabulary resolution.
func (b *builder) edge(n *yaml.Node, term string) (string, error) {
	if term == "" {
		return "", errf(n, "edge must not be empty")
	}
	return b.expand(n, term)
}

func intScalar(n *yaml.Node, what string) (int, error) {
	var limit int
	if err := n.Decode(&limit); err != nil {
		return 0, errf(n, "%s must be an integer", what)
	}
	if limit < 0 {
		return 0, errf(n, "%s must not be negative, got %d", what, limit)
	}
	return limit, nil
}

// deref resolves YAML aliases so shared anchored fragments parse in place.
func deref(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func errf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
