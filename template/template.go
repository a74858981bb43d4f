package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeu5/building-rl-env/engine"
)

// HoleKind tags how a hole is resolved against the engine.
type HoleKind int

const (
	Variable HoleKind = iota
	Meter
)

func (k HoleKind) String() string {
	if k == Meter {
		return "meter"
	}
	return "variable"
}

// Hole is a named placeholder resolved to a live engine value at runtime.
// Variable holes carry the owning entity, meter holes only a meter name.
type Hole struct {
	Kind   HoleKind `json:"kind"`
	Name   string   `json:"name"`
	Entity string   `json:"entity,omitempty"`
}

// VariableHole names a simulation variable on an entity.
func VariableHole(name, entity string) Hole {
	return Hole{Kind: Variable, Name: name, Entity: entity}
}

// MeterHole names a simulation meter.
func MeterHole(name string) Hole {
	return Hole{Kind: Meter, Name: name}
}

// PlacedHole is a hole together with its position in the template and, once
// the template is bound, its engine handle.
type PlacedHole struct {
	Path   []string
	Hole   Hole
	Handle engine.Handle
}

// Key returns the flattened key of the hole, path components joined by "/".
func (p PlacedHole) Key() string {
	return strings.Join(p.Path, "/")
}

type node struct {
	children map[string]*node
	leaf     bool
	hole     Hole
	handle   engine.Handle
	value    float64
}

// Template is a tree of nested named mappings whose leaves are holes. The
// shape is fixed once the template is bound to an engine; afterwards the
// values are overwritten in place once per timestep.
//
// A template is shared between the simulation bridge (which writes it from
// the engine goroutine during the handshake) and the caller (which reads it
// after a step returns). Access is partitioned in time by the handshake, so
// the template itself does no locking.
type Template struct {
	root  *node
	holes int
	bound bool
}

// New creates an empty template.
func New() *Template {
	return &Template{root: newNode()}
}

func newNode() *node {
	return &node{children: make(map[string]*node), handle: engine.InvalidHandle}
}

// Add places a hole at the given path, creating interior mappings as needed.
// Adding to an existing leaf path replaces the hole (last write wins). The
// shape is frozen once the template is bound.
func (t *Template) Add(hole Hole, path ...string) error {
	if t.bound {
		return fmt.Errorf("template is bound, shape is fixed")
	}
	if len(path) == 0 {
		return fmt.Errorf("empty template path")
	}
	cur := t.root
	for i, p := range path {
		if p == "" {
			return fmt.Errorf("empty component in template path %q", strings.Join(path, "/"))
		}
		last := i == len(path)-1
		next, ok := cur.children[p]
		if !ok {
			next = newNode()
			next.leaf = last
			cur.children[p] = next
			if last {
				t.holes++
			}
		}
		if next.leaf != last {
			return fmt.Errorf("template path %q conflicts with existing shape", strings.Join(path, "/"))
		}
		cur = next
	}
	cur.hole = hole
	cur.handle = engine.InvalidHandle
	cur.value = 0
	return nil
}

// AddGroup ensures an interior mapping exists at the given path, so that a
// category with no matching entities still appears as an empty sub-mapping.
func (t *Template) AddGroup(path ...string) error {
	if t.bound {
		return fmt.Errorf("template is bound, shape is fixed")
	}
	if len(path) == 0 {
		return fmt.Errorf("empty template path")
	}
	cur := t.root
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			next = newNode()
			cur.children[p] = next
		}
		if next.leaf {
			return fmt.Errorf("template path %q conflicts with existing shape", strings.Join(path, "/"))
		}
		cur = next
	}
	return nil
}

// Len returns the number of holes in the template.
func (t *Template) Len() int {
	return t.holes
}

// Bound reports whether the template has been bound to engine handles.
func (t *Template) Bound() bool {
	return t.bound
}

// Holes returns every hole in the template ordered lexicographically by
// path. The order matches Flatten.
func (t *Template) Holes() []PlacedHole {
	out := make([]PlacedHole, 0, t.holes)
	walk(t.root, nil, func(path []string, n *node) {
		p := make([]string, len(path))
		copy(p, path)
		out = append(out, PlacedHole{Path: p, Hole: n.hole, Handle: n.handle})
	})
	return out
}

// Bind resolves every hole to an engine handle using the supplied register
// function. Binding is all-or-nothing: the first registration failure aborts
// and the template stays unbound.
func (t *Template) Bind(register func(Hole) (engine.Handle, error)) error {
	var failed error
	walk(t.root, nil, func(path []string, n *node) {
		if failed != nil {
			return
		}
		h, err := register(n.hole)
		if err != nil {
			failed = fmt.Errorf("binding %q: %w", strings.Join(path, "/"), err)
			return
		}
		n.handle = h
	})
	if failed != nil {
		t.Unbind()
		return failed
	}
	t.bound = true
	return nil
}

// Unbind drops all handles. Handles are never valid across engine runs, so a
// restart must unbind and bind again. Values are left in place: after a run
// ends the last refreshed values stay readable until Clear.
func (t *Template) Unbind() {
	walk(t.root, nil, func(_ []string, n *node) {
		n.handle = engine.InvalidHandle
	})
	t.bound = false
}

// Clear zeroes every leaf value, keeping the shape and any bound handles.
func (t *Template) Clear() {
	walk(t.root, nil, func(_ []string, n *node) {
		n.value = 0
	})
}

// Refresh overwrites every leaf value in place by reading its handle.
// Called once per timestep from the engine side of the handshake.
func (t *Template) Refresh(get func(engine.Handle) float64) {
	walk(t.root, nil, func(_ []string, n *node) {
		n.value = get(n.handle)
	})
}

// Value returns the current value of the hole at the given path.
func (t *Template) Value(path ...string) (float64, bool) {
	n, ok := t.lookup(path)
	if !ok || !n.leaf {
		return 0, false
	}
	return n.value, true
}

// HoleAt returns the hole at the given path.
func (t *Template) HoleAt(path ...string) (Hole, bool) {
	n, ok := t.lookup(path)
	if !ok || !n.leaf {
		return Hole{}, false
	}
	return n.hole, true
}

// Keys returns the child names under the given path in sorted order. An
// empty path lists the top-level groups; a leaf or missing path has none.
func (t *Template) Keys(path ...string) []string {
	n, ok := t.lookup(path)
	if !ok || n.leaf {
		return nil
	}
	out := make([]string, 0, len(n.children))
	for k := range n.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Template) lookup(path []string) (*node, bool) {
	cur := t.root
	for _, p := range path {
		next, ok := cur.children[p]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Flatten returns all leaf values ordered lexicographically by path. The
// order is the template's observation-vector layout and is stable for a
// fixed shape.
func (t *Template) Flatten() []float64 {
	out := make([]float64, 0, t.holes)
	walk(t.root, nil, func(_ []string, n *node) {
		out = append(out, n.value)
	})
	return out
}

// FlattenKeys returns the flattened keys in the same order as Flatten.
func (t *Template) FlattenKeys() []string {
	out := make([]string, 0, t.holes)
	walk(t.root, nil, func(path []string, _ *node) {
		out = append(out, strings.Join(path, "/"))
	})
	return out
}

// Snapshot returns the template as nested maps of current values. The
// snapshot is detached: mutating it does not touch the template.
func (t *Template) Snapshot() map[string]any {
	return snapshotNode(t.root)
}

func snapshotNode(n *node) map[string]any {
	out := make(map[string]any, len(n.children))
	for key, child := range n.children {
		if child.leaf {
			out[key] = child.value
		} else {
			out[key] = snapshotNode(child)
		}
	}
	return out
}

// walk visits every leaf depth-first with children in sorted key order,
// which makes the visit order lexicographic in the path.
func walk(n *node, path []string, visit func([]string, *node)) {
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := n.children[k]
		childPath := append(path, k)
		if child.leaf {
			visit(childPath, child)
		} else {
			walk(child, childPath, visit)
		}
	}
}
