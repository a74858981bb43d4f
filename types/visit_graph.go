package types

import (
	"encoding/json"
	"os"
)

// VisitGraph counts state visits and records which actions led where. The
// coverage analyzer feeds it every transition; recording it gives a picture
// of the explored state space.
type VisitGraph struct {
	Nodes map[string]*VisitNode
}

func NewVisitGraph() *VisitGraph {
	return &VisitGraph{
		Nodes: make(map[string]*VisitNode),
	}
}

// Update records one transition and reports whether the source state was
// new to the graph.
func (v *VisitGraph) Update(from State, action Action, to State) bool {
	fromKey := from.Hash()
	toKey := to.Hash()
	isNew := false
	if _, ok := v.Nodes[fromKey]; !ok {
		v.Nodes[fromKey] = NewVisitNode(fromKey)
		isNew = true
	}
	if _, ok := v.Nodes[toKey]; !ok {
		v.Nodes[toKey] = NewVisitNode(toKey)
	}
	v.Nodes[fromKey].Visits += 1
	v.Nodes[fromKey].AddNext(action.Hash(), toKey)
	v.Nodes[toKey].AddPrev(action.Hash(), fromKey)
	return isNew
}

func (v *VisitGraph) Len() int {
	return len(v.Nodes)
}

func (v *VisitGraph) GetVisits() map[string]int {
	results := make(map[string]int)
	for k, n := range v.Nodes {
		results[k] = n.Visits
	}
	return results
}

func (v *VisitGraph) Record(filePath string) {
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	os.WriteFile(filePath, bs, 0644)
}

type VisitNode struct {
	Key    string
	Visits int
	// Next, Prev: Each action can lead to many states
	Next map[string]map[string]bool
	Prev map[string]map[string]bool
}

func NewVisitNode(key string) *VisitNode {
	return &VisitNode{
		Key:    key,
		Visits: 0,
		Next:   make(map[string]map[string]bool),
		Prev:   make(map[string]map[string]bool),
	}
}

func (n *VisitNode) AddPrev(a, prev string) {
	if _, ok := n.Prev[a]; !ok {
		n.Prev[a] = make(map[string]bool)
	}
	n.Prev[a][prev] = true
}

func (n *VisitNode) AddNext(a, next string) {
	if _, ok := n.Next[a]; !ok {
		n.Next[a] = make(map[string]bool)
	}
	n.Next[a][next] = true
}
