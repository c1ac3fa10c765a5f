package graph_test

import (
	"bytes"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/junioryono/scopedi/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	services []reflect.Type
	deps     []reflect.Type
	lifetime string
}

func (p *fakeProvider) Services() []reflect.Type     { return p.services }
func (p *fakeProvider) Dependencies() []reflect.Type { return p.deps }
func (p *fakeProvider) LifetimeName() string         { return p.lifetime }

func provide(svc reflect.Type, deps ...reflect.Type) *fakeProvider {
	return &fakeProvider{services: []reflect.Type{svc}, deps: deps, lifetime: "Singleton"}
}

type (
	ServiceA struct{}
	ServiceB struct{}
	ServiceC struct{}
	ServiceD struct{}
)

var (
	typeA = reflect.TypeOf(ServiceA{})
	typeB = reflect.TypeOf(ServiceB{})
	typeC = reflect.TypeOf(ServiceC{})
	typeD = reflect.TypeOf(ServiceD{})
)

func TestDependencyGraph_AddProvider(t *testing.T) {
	g := graph.NewDependencyGraph()

	require.NoError(t, g.AddProvider(provide(typeA, typeB, typeC)))
	require.NoError(t, g.AddProvider(provide(typeB, typeC)))

	assert.Equal(t, 3, g.Size())
	assert.True(t, g.HasNode(typeC))
	assert.Equal(t, []graph.NodeKey{{Type: typeB}, {Type: typeC}}, g.GetDependencies(typeA))
	assert.ElementsMatch(t, []graph.NodeKey{{Type: typeA}, {Type: typeB}}, g.GetDependents(typeC))
	assert.Empty(t, g.GetNode(typeC).Providers, "C is referenced but not provided")
}

func TestDependencyGraph_Nil(t *testing.T) {
	g := graph.NewDependencyGraph()
	assert.Error(t, g.AddProvider(nil))
}

func TestDependencyGraph_Cycles(t *testing.T) {
	t.Run("two node cycle is rejected and rolled back", func(t *testing.T) {
		g := graph.NewDependencyGraph()
		require.NoError(t, g.AddProvider(provide(typeA, typeB)))

		err := g.AddProvider(provide(typeB, typeA))
		require.Error(t, err)

		var cycleErr graph.CircularDependencyError
		require.True(t, errors.As(err, &cycleErr))
		assert.Len(t, cycleErr.Path, 2)
		assert.Contains(t, err.Error(), "circular dependency detected")

		assert.True(t, g.IsAcyclic())
		assert.Empty(t, g.GetDependencies(typeB))
		assert.Empty(t, g.GetNode(typeB).Providers)
	})

	t.Run("self dependency", func(t *testing.T) {
		g := graph.NewDependencyGraph()
		err := g.AddProvider(provide(typeA, typeA))

		var cycleErr graph.CircularDependencyError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []graph.NodeKey{{Type: typeA}}, cycleErr.Path)
	})

	t.Run("three node cycle", func(t *testing.T) {
		g := graph.NewDependencyGraph()
		require.NoError(t, g.AddProvider(provide(typeA, typeB)))
		require.NoError(t, g.AddProvider(provide(typeB, typeC)))

		err := g.AddProvider(provide(typeC, typeA))

		var cycleErr graph.CircularDependencyError
		require.ErrorAs(t, err, &cycleErr)
		assert.Len(t, cycleErr.Path, 3)
		assert.Equal(t, 3, g.Size())
	})
}

func TestDependencyGraph_TopologicalSort(t *testing.T) {
	g := graph.NewDependencyGraph()
	require.NoError(t, g.AddProvider(provide(typeA, typeB, typeC)))
	require.NoError(t, g.AddProvider(provide(typeB, typeD)))
	require.NoError(t, g.AddProvider(provide(typeC, typeD)))
	require.NoError(t, g.AddProvider(provide(typeD)))

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, sorted, 4)

	position := make(map[reflect.Type]int)
	for i, n := range sorted {
		position[n.Key.Type] = i
	}

	assert.Less(t, position[typeD], position[typeB])
	assert.Less(t, position[typeD], position[typeC])
	assert.Less(t, position[typeB], position[typeA])
	assert.Less(t, position[typeC], position[typeA])

	require.NoError(t, g.CalculateDepths())
	assert.Equal(t, 0, g.GetNode(typeD).Depth)
	assert.Equal(t, 2, g.GetNode(typeA).Depth)
}

func TestDependencyGraph_Concurrent(t *testing.T) {
	type (
		S0 struct{}
		S1 struct{}
		S2 struct{}
		S3 struct{}
		S4 struct{}
	)
	types := []reflect.Type{
		reflect.TypeOf(S0{}), reflect.TypeOf(S1{}), reflect.TypeOf(S2{}),
		reflect.TypeOf(S3{}), reflect.TypeOf(S4{}),
	}

	g := graph.NewDependencyGraph()

	var wg sync.WaitGroup
	for i := range types {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			var deps []reflect.Type
			if idx > 0 {
				deps = append(deps, types[idx-1])
			}
			assert.NoError(t, g.AddProvider(provide(types[idx], deps...)))
		}(i)
		go func() {
			defer wg.Done()
			_ = g.IsAcyclic()
			_ = g.Size()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(types), g.Size())
	assert.True(t, g.IsAcyclic())
}

func TestVisualizer(t *testing.T) {
	g := graph.NewDependencyGraph()
	require.NoError(t, g.AddProvider(provide(typeA, typeB)))
	require.NoError(t, g.AddProvider(&fakeProvider{services: []reflect.Type{typeB}, lifetime: "Scoped"}))

	v := graph.NewVisualizer(g)

	t.Run("dot", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, v.WriteDOT(&buf))

		out := buf.String()
		assert.Contains(t, out, "digraph dependencies {")
		assert.Contains(t, out, "n0 -> n1;")
		assert.Contains(t, out, "lightblue")
		assert.Contains(t, out, "lightgreen")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, v.WriteText(&buf))

		out := buf.String()
		assert.Contains(t, out, "Level 0:")
		assert.Contains(t, out, "Level 1:")
		assert.Contains(t, out, "Total edges: 1")
	})

	t.Run("adjacency", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, v.WriteAdjacencyList(&buf))
		assert.Contains(t, buf.String(), "graph_test.ServiceA -> [graph_test.ServiceB]")
	})
}
