package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visitRecord struct {
	node     int
	distance int
}

func adjacency(links map[int][]int) NeighborsFunc[int] {
	return func(n int) ([]int, error) { return links[n], nil }
}

func collect(records *[]visitRecord) VisitFunc[int] {
	return func(n, d int) error {
		*records = append(*records, visitRecord{n, d})
		return nil
	}
}

// shortestDistances is a reference BFS used to check the engine.
func shortestDistances(links map[int][]int, start int) map[int]int {
	dist := map[int]int{start: 0}
	q := []int{start}
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		for _, n := range links[cur] {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[cur] + 1
				q = append(q, n)
			}
		}
	}
	return dist
}

func randomGraph(rng *rand.Rand, nodes, edges int) map[int][]int {
	links := make(map[int][]int, nodes)
	for i := 0; i < edges; i++ {
		a, b := rng.Intn(nodes), rng.Intn(nodes)
		links[a] = append(links[a], b)
	}
	return links
}

func TestBreadthFirstSearch_RandomGraphsAreLayered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		links := randomGraph(rng, 5+rng.Intn(40), rng.Intn(120))
		var records []visitRecord

		err := BreadthFirstSearch(0, collect(&records), adjacency(links), nil)
		require.NoError(t, err)

		want := shortestDistances(links, 0)
		seen := make(map[int]bool)
		for i, r := range records {
			require.False(t, seen[r.node], "trial %d: node %d visited twice", trial, r.node)
			seen[r.node] = true
			if i > 0 {
				require.GreaterOrEqual(t, r.distance, records[i-1].distance, "trial %d: distances must not decrease", trial)
			}
			require.Equal(t, want[r.node], r.distance, "trial %d: node %d has wrong distance", trial, r.node)
		}
		require.Len(t, records, len(want), "trial %d: every reachable node is visited", trial)
	}
}

func TestBreadthFirstSearch_NeighborOrderBreaksTies(t *testing.T) {
	links := map[int][]int{
		0: {3, 1, 2},
		1: {4},
		3: {5},
	}
	var records []visitRecord
	require.NoError(t, BreadthFirstSearch(0, collect(&records), adjacency(links), nil))

	order := make([]int, len(records))
	for i, r := range records {
		order[i] = r.node
	}
	assert.Equal(t, []int{0, 3, 1, 2, 5, 4}, order)
}

func TestBreadthFirstSearch_HandlesCycles(t *testing.T) {
	links := map[int][]int{0: {1}, 1: {2}, 2: {0, 1}}
	var records []visitRecord
	require.NoError(t, BreadthFirstSearch(0, collect(&records), adjacency(links), nil))
	assert.Equal(t, []visitRecord{{0, 0}, {1, 1}, {2, 2}}, records)
}

func TestBreadthFirstSearch_PreVisitSkip(t *testing.T) {
	links := map[int][]int{0: {1, 2}, 1: {3}, 2: {4}}
	hooks := HookFuncs[int]{
		Pre: func(n, _ int, _ Pending) (Action, error) {
			if n == 1 {
				return Skip, nil
			}
			return Proceed, nil
		},
	}
	var records []visitRecord
	require.NoError(t, BreadthFirstSearch(0, collect(&records), adjacency(links), hooks))

	// 1 is neither visited nor expanded, so 3 is never reached.
	assert.Equal(t, []visitRecord{{0, 0}, {2, 1}, {4, 2}}, records)
}

func TestBreadthFirstSearch_PreVisitStop(t *testing.T) {
	links := map[int][]int{0: {1, 2}, 1: {3}}
	hooks := HookFuncs[int]{
		Pre: func(n, _ int, _ Pending) (Action, error) {
			if n == 2 {
				return Stop, nil
			}
			return Proceed, nil
		},
	}
	var records []visitRecord
	require.NoError(t, BreadthFirstSearch(0, collect(&records), adjacency(links), hooks))
	assert.Equal(t, []visitRecord{{0, 0}, {1, 1}}, records)
}

func TestBreadthFirstSearch_PostVisitSkipPreventsExpansion(t *testing.T) {
	links := map[int][]int{0: {1, 2}, 1: {3}, 2: {4}}
	hooks := HookFuncs[int]{
		Post: func(_ int, d int, _ Pending) (Action, error) {
			if d == 1 {
				return Skip, nil
			}
			return Proceed, nil
		},
	}
	var records []visitRecord
	require.NoError(t, BreadthFirstSearch(0, collect(&records), adjacency(links), hooks))
	assert.Equal(t, []visitRecord{{0, 0}, {1, 1}, {2, 1}}, records)
}

func TestBreadthFirstSearch_PendingView(t *testing.T) {
	links := map[int][]int{0: {1, 2}, 1: {3}}
	var preFronts, postFronts []string
	hooks := HookFuncs[int]{
		Pre: func(n, d int, p Pending) (Action, error) {
			front, err := p.Peek()
			require.NoError(t, err)
			assert.Equal(t, d, front, "the current node sits at the front during pre-visit")
			preFronts = append(preFronts, fmt.Sprintf("%d:%d", n, p.Len()))
			return Proceed, nil
		},
		Post: func(n, _ int, p Pending) (Action, error) {
			front, err := p.Peek()
			if err != nil {
				postFronts = append(postFronts, fmt.Sprintf("%d:-", n))
			} else {
				postFronts = append(postFronts, fmt.Sprintf("%d:%d", n, front))
			}
			return Proceed, nil
		},
	}
	require.NoError(t, BreadthFirstSearch(0, func(int, int) error { return nil }, adjacency(links), hooks))

	assert.Equal(t, []string{"0:1", "1:2", "2:2", "3:1"}, preFronts)
	assert.Equal(t, []string{"0:-", "1:1", "2:2", "3:-"}, postFronts)
}

func TestBreadthFirstSearch_CallbackErrorsAbort(t *testing.T) {
	boom := errors.New("boom")
	links := map[int][]int{0: {1}, 1: {2}}

	t.Run("visit", func(t *testing.T) {
		calls := 0
		err := BreadthFirstSearch(0, func(n, _ int) error {
			calls++
			if n == 1 {
				return boom
			}
			return nil
		}, adjacency(links), nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, calls)
	})

	t.Run("neighbors", func(t *testing.T) {
		err := BreadthFirstSearch(0, func(int, int) error { return nil }, func(int) ([]int, error) {
			return nil, boom
		}, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("hook", func(t *testing.T) {
		hooks := HookFuncs[int]{Post: func(int, int, Pending) (Action, error) { return Proceed, boom }}
		err := BreadthFirstSearch(0, func(int, int) error { return nil }, adjacency(links), hooks)
		assert.ErrorIs(t, err, boom)
	})
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "action(9)", Action(9).String())
}
