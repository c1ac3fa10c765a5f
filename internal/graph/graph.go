package graph

import (
	"fmt"
	"reflect"
	"sync"
)

// Provider defines what the graph needs to know about a registration.
type Provider interface {
	// Services returns the capability types the provider satisfies.
	Services() []reflect.Type

	// Dependencies returns the capability types the provider consumes.
	Dependencies() []reflect.Type

	// LifetimeName returns a display name of the provider's lifetime.
	LifetimeName() string
}

// DependencyGraph manages the dependency relationships between capabilities.
// It provides cycle detection and topological ordering.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*Node
	order []NodeKey // insertion order, keeps traversal deterministic
}

// NodeKey uniquely identifies a node in the graph
type NodeKey struct {
	Type reflect.Type
}

// Node represents a capability in the dependency graph
type Node struct {
	Key       NodeKey
	Providers []Provider

	Dependencies []NodeKey // capabilities this node depends on
	Dependents   []NodeKey // capabilities that depend on this node
	Depth        int       // longest dependency chain below this node
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[NodeKey]*Node),
	}
}

func (g *DependencyGraph) node(key NodeKey) *Node {
	n, ok := g.nodes[key]
	if !ok {
		n = &Node{Key: key}
		g.nodes[key] = n
		g.order = append(g.order, key)
	}
	return n
}

// AddProvider adds a provider and its edges to the graph.
// If the new edges close a cycle the provider is rolled back and a
// CircularDependencyError is returned.
func (g *DependencyGraph) AddProvider(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	type added struct {
		from, to NodeKey
	}
	var edges []added
	orderLen := len(g.order)

	for _, svc := range provider.Services() {
		from := NodeKey{Type: svc}
		n := g.node(from)
		n.Providers = append(n.Providers, provider)

		for _, dep := range provider.Dependencies() {
			to := NodeKey{Type: dep}
			g.node(to)
			if containsKey(n.Dependencies, to) {
				continue
			}
			n.Dependencies = append(n.Dependencies, to)
			g.nodes[to].Dependents = append(g.nodes[to].Dependents, from)
			edges = append(edges, added{from: from, to: to})
		}
	}

	for _, svc := range provider.Services() {
		if err := g.detectCyclesFrom(NodeKey{Type: svc}); err != nil {
			for _, e := range edges {
				g.nodes[e.from].Dependencies = removeKey(g.nodes[e.from].Dependencies, e.to)
				g.nodes[e.to].Dependents = removeKey(g.nodes[e.to].Dependents, e.from)
			}
			for _, svc := range provider.Services() {
				n := g.nodes[NodeKey{Type: svc}]
				n.Providers = n.Providers[:len(n.Providers)-1]
			}
			for _, key := range g.order[orderLen:] {
				if n := g.nodes[key]; len(n.Providers) == 0 && len(n.Dependencies) == 0 && len(n.Dependents) == 0 {
					delete(g.nodes, key)
				}
			}
			order := make([]NodeKey, 0, len(g.order))
			for _, key := range g.order {
				if _, ok := g.nodes[key]; ok {
					order = append(order, key)
				}
			}
			g.order = order
			return err
		}
	}

	return nil
}

// DetectCycles checks if the graph contains any cycles
func (g *DependencyGraph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, key := range g.order {
		if err := g.detectCyclesFrom(key); err != nil {
			return err
		}
	}

	return nil
}

// detectCyclesFrom performs a DFS from start and reports the first cycle found.
func (g *DependencyGraph) detectCyclesFrom(start NodeKey) error {
	const (
		white = iota
		grey
		black
	)

	color := make(map[NodeKey]int)
	var path []NodeKey

	var visit func(key NodeKey) error
	visit = func(key NodeKey) error {
		switch color[key] {
		case grey:
			idx := 0
			for i, k := range path {
				if k == key {
					idx = i
					break
				}
			}
			cycle := make([]NodeKey, len(path)-idx)
			copy(cycle, path[idx:])
			return CircularDependencyError{Node: key, Path: cycle}
		case black:
			return nil
		}

		color[key] = grey
		path = append(path, key)

		if n, ok := g.nodes[key]; ok {
			for _, dep := range n.Dependencies {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[key] = black
		return nil
	}

	return visit(start)
}

// TopologicalSort returns nodes in dependency order (dependencies first)
func (g *DependencyGraph) TopologicalSort() ([]*Node, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Node, 0, len(g.nodes))
	visited := make(map[NodeKey]bool)

	var visit func(key NodeKey)
	visit = func(key NodeKey) {
		if visited[key] {
			return
		}
		visited[key] = true

		n := g.nodes[key]
		for _, dep := range n.Dependencies {
			visit(dep)
		}
		result = append(result, n)
	}

	for _, key := range g.order {
		visit(key)
	}

	return result, nil
}

// CalculateDepths assigns each node the length of its longest dependency chain.
// The graph must be acyclic.
func (g *DependencyGraph) CalculateDepths() error {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range sorted {
		n.Depth = 0
		for _, dep := range n.Dependencies {
			if d := g.nodes[dep].Depth + 1; d > n.Depth {
				n.Depth = d
			}
		}
	}

	return nil
}

// GetDependencies returns the direct dependencies of a capability
func (g *DependencyGraph) GetDependencies(serviceType reflect.Type) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n, ok := g.nodes[NodeKey{Type: serviceType}]; ok {
		result := make([]NodeKey, len(n.Dependencies))
		copy(result, n.Dependencies)
		return result
	}

	return nil
}

// GetDependents returns capabilities that depend on the given one
func (g *DependencyGraph) GetDependents(serviceType reflect.Type) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n, ok := g.nodes[NodeKey{Type: serviceType}]; ok {
		result := make([]NodeKey, len(n.Dependents))
		copy(result, n.Dependents)
		return result
	}

	return nil
}

// GetNode returns the node for a given capability
func (g *DependencyGraph) GetNode(serviceType reflect.Type) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes[NodeKey{Type: serviceType}]
}

// HasNode checks if a node exists in the graph
func (g *DependencyGraph) HasNode(serviceType reflect.Type) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[NodeKey{Type: serviceType}]
	return ok
}

// Size returns the number of nodes in the graph
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// IsAcyclic returns true if the graph has no cycles
func (g *DependencyGraph) IsAcyclic() bool {
	return g.DetectCycles() == nil
}

// String returns a string representation of the node key
func (k NodeKey) String() string {
	return fmt.Sprintf("%v", k.Type)
}

// String returns a string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("Node{%s, deps:%d, dependents:%d, depth:%d}",
		n.Key.String(), len(n.Dependencies), len(n.Dependents), n.Depth)
}

func containsKey(keys []NodeKey, key NodeKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func removeKey(keys []NodeKey, key NodeKey) []NodeKey {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
