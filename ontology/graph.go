package ontology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ParseError reports a malformed building description. Graph construction is
// all-or-nothing: no partial graph is returned alongside an error.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed building description: %s", e.Reason)
}

// Node is a single building entity: a zone, surface, schedule, system or
// similar. Attrs holds the entity's attributes as decoded JSON values.
type Node struct {
	Name  string
	Type  string
	Attrs map[string]any
}

// Attr returns a string attribute value, or "" when the attribute is absent
// or not a string.
func (n *Node) Attr(name string) string {
	s, _ := n.Attrs[name].(string)
	return s
}

// Number returns a numeric attribute value.
func (n *Node) Number(name string) (float64, bool) {
	f, ok := n.Attrs[name].(float64)
	return f, ok
}

// Graph is an immutable entity graph built from a building description.
// Nodes keep the order in which they appear in the document, so every query
// is deterministic across runs on the same file. There are no mutation
// operations after construction.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
	byType map[string][]*Node
	types  []string
}

// FromFile reads a building description file and builds its entity graph.
func FromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading building description: %w", err)
	}
	return FromDescription(data)
}

// FromDescription builds the entity graph of a building description: a JSON
// object mapping entity type to an object of named entities. The decoder
// walks tokens instead of unmarshalling into one big map so that document
// order is preserved.
func FromDescription(data []byte) (*Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	g := &Graph{
		byName: make(map[string]*Node),
		byType: make(map[string][]*Node),
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}
		entityType, ok := tok.(string)
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("expected an entity type name, got %v", tok)}
		}
		if err := g.parseSection(dec, entityType); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	return g, nil
}

// parseSection consumes one entity-type section: an object mapping entity
// name to an attribute object.
func (g *Graph) parseSection(dec *json.Decoder, entityType string) error {
	if err := expectDelim(dec, '{'); err != nil {
		return &ParseError{Reason: fmt.Sprintf("section %q: %s", entityType, err)}
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return &ParseError{Reason: err.Error()}
		}
		name, ok := tok.(string)
		if !ok {
			return &ParseError{Reason: fmt.Sprintf("section %q: expected an entity name, got %v", entityType, tok)}
		}
		attrs := make(map[string]any)
		if err := dec.Decode(&attrs); err != nil {
			return &ParseError{Reason: fmt.Sprintf("entity %q: %s", name, err)}
		}
		if _, exists := g.byName[name]; exists {
			return &ParseError{Reason: fmt.Sprintf("duplicate entity name %q", name)}
		}
		node := &Node{Name: name, Type: entityType, Attrs: attrs}
		g.nodes = append(g.nodes, node)
		g.byName[name] = node
		if _, seen := g.byType[entityType]; !seen {
			g.types = append(g.types, entityType)
		}
		g.byType[entityType] = append(g.byType[entityType], node)
	}
	if _, err := dec.Token(); err != nil {
		return &ParseError{Reason: err.Error()}
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Find returns the nodes of the given entity type matching pred, in document
// order. A nil pred matches every node of the type.
func (g *Graph) Find(entityType string, pred func(*Node) bool) []*Node {
	out := make([]*Node, 0)
	for _, n := range g.byType[entityType] {
		if pred == nil || pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// Lookup returns the node with the given name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Types returns every entity type present in the description, in document
// order.
func (g *Graph) Types() []string {
	out := make([]string, len(g.types))
	copy(out, g.types)
	return out
}

// Len returns the total number of entities in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// RelationsOf resolves the nodes referenced by the named attribute of a
// node. A string value that names another entity is an edge; values naming
// nothing contribute no edge. List and object attribute values are scanned
// element-wise.
func (g *Graph) RelationsOf(node *Node, attr string) []*Node {
	out := make([]*Node, 0)
	if node == nil {
		return out
	}
	g.collectRefs(node.Attrs[attr], &out)
	return out
}

func (g *Graph) collectRefs(v any, out *[]*Node) {
	switch val := v.(type) {
	case string:
		if n, ok := g.byName[val]; ok {
			*out = append(*out, n)
		}
	case []any:
		for _, item := range val {
			g.collectRefs(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			g.collectRefs(val[k], out)
		}
	}
}
