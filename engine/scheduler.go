package engine

import (
	"fmt"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

// Order returns a topological order over all steps using Kahn's algorithm.
// Ready steps are taken in insertion order and successors in connection
// order, so an unchanged workflow always yields the same sequence.
func (w *Workflow) Order() ([]model.ID, error) {
	if err := w.checkConnections(); err != nil {
		return nil, err
	}
	indeg := make(map[model.ID]int, len(w.steps)) // incoming edges per step
	out := map[model.ID][]model.ID{}               // outgoing edges per step
	for _, id := range w.order {
		indeg[id] = 0
	}
	for _, c := range w.connections {
		out[c.FromNode] = append(out[c.FromNode], c.ToNode)
		indeg[c.ToNode]++
	}

	q := []model.ID{}
	for _, id := range w.order {
		if indeg[id] == 0 {
			q = append(q, id)
		}
	}
	order := make([]model.ID, 0, len(w.order))
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		order = append(order, v)
		for _, u := range out[v] {
			indeg[u]--
			if indeg[u] == 0 {
				q = append(q, u)
			}
		}
	}
	if len(order) != len(w.order) {
		return nil, fmt.Errorf("%w: %d of %d steps could not be ordered", ErrCycle, len(w.order)-len(order), len(w.order))
	}
	return order, nil
}

// Ancestors returns every step reachable by following connections backwards
// from id, in discovery order. id itself is never included.
func (w *Workflow) Ancestors(id model.ID) ([]model.ID, error) {
	if _, ok := w.steps[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	visited := map[model.ID]bool{id: true}
	var ancestors []model.ID
	q := []model.ID{id}
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		for _, c := range w.connections {
			if c.ToNode == cur && !visited[c.FromNode] {
				visited[c.FromNode] = true
				ancestors = append(ancestors, c.FromNode)
				q = append(q, c.FromNode)
			}
		}
	}
	return ancestors, nil
}
