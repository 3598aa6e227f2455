// Package graph implements a generic breadth-first traversal driver.
//
// The engine knows nothing about where nodes come from: the caller supplies a
// neighbor function and a visitor, and may steer the walk through PreVisit and
// PostVisit hooks that answer Proceed, Skip or Stop for each node. No I/O
// happens here; any network work lives inside the callbacks.
//
// Basic usage:
//
//	err := graph.BreadthFirstSearch("C0011849",
//	    func(id string, dist int) error { fmt.Println(id, dist); return nil },
//	    func(id string) ([]string, error) { return links[id], nil },
//	    nil)
package graph

import (
	"fmt"

	"github.com/sanonone/termgraph/pkg/queue"
)

// Action tells the engine how to continue after a hook.
type Action int

const (
	// Proceed continues normally.
	Proceed Action = iota
	// Skip drops the current node without expanding its neighbors.
	Skip
	// Stop ends the whole traversal.
	Stop
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Pending is a read-only view of the distances still waiting in the frontier,
// front first. During PreVisit the current node's own distance is at the front;
// during PostVisit it has already been removed.
type Pending interface {
	Len() int
	Peek() (int, error)
}

// Hooks steers a traversal. Both methods are called once per node that reaches them.
type Hooks[N comparable] interface {
	PreVisit(node N, distance int, pending Pending) (Action, error)
	PostVisit(node N, distance int, pending Pending) (Action, error)
}

// HookFuncs adapts plain functions to Hooks. Nil fields behave as Proceed.
type HookFuncs[N comparable] struct {
	Pre  func(node N, distance int, pending Pending) (Action, error)
	Post func(node N, distance int, pending Pending) (Action, error)
}

// PreVisit implements Hooks.
func (h HookFuncs[N]) PreVisit(node N, distance int, pending Pending) (Action, error) {
	if h.Pre == nil {
		return Proceed, nil
	}
	return h.Pre(node, distance, pending)
}

// PostVisit implements Hooks.
func (h HookFuncs[N]) PostVisit(node N, distance int, pending Pending) (Action, error) {
	if h.Post == nil {
		return Proceed, nil
	}
	return h.Post(node, distance, pending)
}

// NoHooks proceeds everywhere.
type NoHooks[N comparable] struct{}

// PreVisit implements Hooks.
func (NoHooks[N]) PreVisit(N, int, Pending) (Action, error) { return Proceed, nil }

// PostVisit implements Hooks.
func (NoHooks[N]) PostVisit(N, int, Pending) (Action, error) { return Proceed, nil }

// VisitFunc receives each visited node together with its distance from the start.
type VisitFunc[N comparable] func(node N, distance int) error

// NeighborsFunc returns the neighbors of node. The order of the returned slice
// decides tie-breaking between equally distant nodes, so it must be stable.
type NeighborsFunc[N comparable] func(node N) ([]N, error)

// frontier keeps the queued nodes and their distances in lock-step.
type frontier[N comparable] struct {
	nodes     *queue.OrderedSet[N, N]
	distances *queue.Queue[int]
}

func (f *frontier[N]) push(node N, distance int) {
	f.nodes.Push(node)
	f.distances.Push(distance)
}

func (f *frontier[N]) pop() (N, int, error) {
	node, err := f.nodes.Pop()
	if err != nil {
		return node, 0, err
	}
	dist, err := f.distances.Pop()
	return node, dist, err
}

// BreadthFirstSearch walks the graph reachable from start in non-decreasing
// distance order, calling visit once per node.
//
// For every node at the front of the frontier:
//  1. PreVisit: Stop ends the walk immediately (the node is not marked visited),
//     Skip marks it visited without calling visit or expanding it.
//  2. visit is called, the node leaves the frontier and joins the visited set.
//  3. PostVisit: Stop ends the walk, Skip moves on without expanding.
//  4. Neighbors not yet visited or queued are pushed with distance+1, in the
//     order returned by neighbors.
//
// A nil hooks value proceeds everywhere. Any error returned by a callback
// aborts the traversal and is returned to the caller.
func BreadthFirstSearch[N comparable](start N, visit VisitFunc[N], neighbors NeighborsFunc[N], hooks Hooks[N]) error {
	if hooks == nil {
		hooks = NoHooks[N]{}
	}

	front := &frontier[N]{
		nodes:     queue.NewSet[N](),
		distances: queue.New[int](),
	}
	visited := queue.NewSet[N]()
	front.push(start, 0)

	for front.nodes.Len() > 0 {
		current, err := front.nodes.Peek()
		if err != nil {
			return err
		}
		distance, err := front.distances.Peek()
		if err != nil {
			return err
		}

		action, err := hooks.PreVisit(current, distance, front.distances)
		if err != nil {
			return fmt.Errorf("pre-visit %v: %w", current, err)
		}
		switch action {
		case Stop:
			return nil
		case Skip:
			if _, _, err := front.pop(); err != nil {
				return err
			}
			visited.Push(current)
			continue
		}

		if err := visit(current, distance); err != nil {
			return fmt.Errorf("visit %v: %w", current, err)
		}

		if _, _, err := front.pop(); err != nil {
			return err
		}
		visited.Push(current)

		action, err = hooks.PostVisit(current, distance, front.distances)
		if err != nil {
			return fmt.Errorf("post-visit %v: %w", current, err)
		}
		switch action {
		case Stop:
			return nil
		case Skip:
			continue
		}

		next, err := neighbors(current)
		if err != nil {
			return fmt.Errorf("neighbors of %v: %w", current, err)
		}
		for _, n := range next {
			if visited.Contains(n) || front.nodes.Contains(n) {
				continue
			}
			front.push(n, distance+1)
		}
	}
	return nil
}
