// Package queue provides the FIFO containers used by the graph traversal.
//
// This file defines OrderedSet, a first-in first-out queue that refuses
// duplicates, and Queue, a plain FIFO without membership tracking. Both are
// built on container/list so that Push, Pop and Remove run in constant time.
// They are not safe for concurrent use; a traversal owns its queues.
package queue

import (
	"container/list"
	"errors"
)

var (
	// ErrEmptyQueue is returned by Pop and Peek on an empty queue.
	ErrEmptyQueue = errors.New("queue: empty queue")

	// ErrNotFound is returned by Remove when the item is not a member.
	ErrNotFound = errors.New("queue: item not found")
)

// OrderedSet is a FIFO queue with O(1) membership tests.
// Two items are considered equal when the key function maps them to the same key.
type OrderedSet[T any, K comparable] struct {
	key   func(T) K
	order *list.List
	index map[K]*list.Element
}

// NewOrderedSet creates an empty OrderedSet using key to decide equality.
func NewOrderedSet[T any, K comparable](key func(T) K) *OrderedSet[T, K] {
	return &OrderedSet[T, K]{
		key:   key,
		order: list.New(),
		index: make(map[K]*list.Element),
	}
}

// NewSet creates an empty OrderedSet where items are their own key.
func NewSet[T comparable]() *OrderedSet[T, T] {
	return NewOrderedSet(func(item T) T { return item })
}

// Push appends item to the back of the queue.
// It is a no-op if an equal item is already present; the existing item keeps its position.
func (s *OrderedSet[T, K]) Push(item T) {
	k := s.key(item)
	if _, ok := s.index[k]; ok {
		return
	}
	s.index[k] = s.order.PushBack(item)
}

// Pop removes and returns the front item.
func (s *OrderedSet[T, K]) Pop() (T, error) {
	front := s.order.Front()
	if front == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	item := s.order.Remove(front).(T)
	delete(s.index, s.key(item))
	return item, nil
}

// Peek returns the front item without removing it.
func (s *OrderedSet[T, K]) Peek() (T, error) {
	front := s.order.Front()
	if front == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	return front.Value.(T), nil
}

// Contains reports whether an item equal to item is in the queue.
func (s *OrderedSet[T, K]) Contains(item T) bool {
	_, ok := s.index[s.key(item)]
	return ok
}

// Remove deletes the member equal to item, wherever it sits in the queue.
func (s *OrderedSet[T, K]) Remove(item T) error {
	k := s.key(item)
	elem, ok := s.index[k]
	if !ok {
		return ErrNotFound
	}
	s.order.Remove(elem)
	delete(s.index, k)
	return nil
}

// Len returns the number of items in the queue.
func (s *OrderedSet[T, K]) Len() int { return s.order.Len() }

// Items returns a snapshot of the queue contents in FIFO order.
func (s *OrderedSet[T, K]) Items() []T {
	out := make([]T, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	return out
}

// Queue is a plain FIFO queue. Duplicates are allowed.
type Queue[T any] struct {
	items *list.List
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{items: list.New()}
}

// Push appends item to the back of the queue.
func (q *Queue[T]) Push(item T) { q.items.PushBack(item) }

// Pop removes and returns the front item.
func (q *Queue[T]) Pop() (T, error) {
	front := q.items.Front()
	if front == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	return q.items.Remove(front).(T), nil
}

// Peek returns the front item without removing it.
func (q *Queue[T]) Peek() (T, error) {
	front := q.items.Front()
	if front == nil {
		var zero T
		return zero, ErrEmptyQueue
	}
	return front.Value.(T), nil
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.items.Len() }
