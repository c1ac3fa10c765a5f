package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Visualizer provides methods to visualize the dependency graph
type Visualizer struct {
	graph *DependencyGraph
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(graph *DependencyGraph) *Visualizer {
	return &Visualizer{graph: graph}
}

// WriteDOT writes the graph in Graphviz DOT format
func (v *Visualizer) WriteDOT(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	nodeIDs := make(map[NodeKey]string, len(v.graph.order))
	for i, key := range v.graph.order {
		node := v.graph.nodes[key]
		nodeID := fmt.Sprintf("n%d", i)
		nodeIDs[key] = nodeID

		fmt.Fprintf(&b, "  %s [label=\"%s\", fillcolor=\"%s\", style=filled];\n",
			nodeID, formatNodeLabel(node), nodeColor(node))
	}

	for _, key := range v.graph.order {
		for _, dep := range v.graph.nodes[key].Dependencies {
			fmt.Fprintf(&b, "  %s -> %s;\n", nodeIDs[key], nodeIDs[dep])
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes the graph grouped by dependency depth
func (v *Visualizer) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("Dependency Graph:\n")
	b.WriteString("=================\n\n")

	if err := v.graph.CalculateDepths(); err != nil {
		fmt.Fprintf(&b, "Warning: %v\n", err)
		_, werr := io.WriteString(w, b.String())
		return werr
	}

	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	levels := make(map[int][]*Node)
	maxDepth := 0
	for _, key := range v.graph.order {
		n := v.graph.nodes[key]
		levels[n.Depth] = append(levels[n.Depth], n)
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}

	for depth := 0; depth <= maxDepth; depth++ {
		nodes, ok := levels[depth]
		if !ok {
			continue
		}

		fmt.Fprintf(&b, "Level %d:\n", depth)
		b.WriteString("--------\n")
		for _, n := range nodes {
			writeNodeDetails(&b, n, "  ")
		}
		b.WriteString("\n")
	}

	edges := 0
	for _, n := range v.graph.nodes {
		edges += len(n.Dependencies)
	}

	b.WriteString("Statistics:\n")
	b.WriteString("-----------\n")
	fmt.Fprintf(&b, "  Total nodes: %d\n", len(v.graph.nodes))
	fmt.Fprintf(&b, "  Total edges: %d\n", edges)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteAdjacencyList writes the graph as an adjacency list sorted by name
func (v *Visualizer) WriteAdjacencyList(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	keys := make([]NodeKey, len(v.graph.order))
	copy(keys, v.graph.order)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	var b strings.Builder
	for _, from := range keys {
		deps := v.graph.nodes[from].Dependencies
		names := make([]string, len(deps))
		for i, dep := range deps {
			names[i] = dep.String()
		}
		fmt.Fprintf(&b, "%s -> [%s]\n", from.String(), strings.Join(names, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatNodeLabel(node *Node) string {
	typeStr := node.Key.String()

	// Drop the package path for readability
	if i := strings.LastIndex(typeStr, "/"); i >= 0 {
		typeStr = typeStr[i+1:]
	}

	return strings.ReplaceAll(typeStr, `"`, `\"`)
}

func nodeColor(node *Node) string {
	if len(node.Providers) == 0 {
		return "lightgray" // Not registered
	}

	switch node.Providers[len(node.Providers)-1].LifetimeName() {
	case "Singleton":
		return "lightblue"
	case "Scoped":
		return "lightgreen"
	case "Transient":
		return "lightyellow"
	default:
		return "white"
	}
}

func writeNodeDetails(b *strings.Builder, node *Node, indent string) {
	fmt.Fprintf(b, "%s%s\n", indent, node.Key.String())

	if len(node.Providers) == 0 {
		fmt.Fprintf(b, "%s  Lifetime: <unregistered>\n", indent)
	} else {
		lifetimes := make([]string, len(node.Providers))
		for i, p := range node.Providers {
			lifetimes[i] = p.LifetimeName()
		}
		fmt.Fprintf(b, "%s  Lifetime: %s\n", indent, strings.Join(lifetimes, ", "))
	}

	if len(node.Dependencies) > 0 {
		deps := make([]string, len(node.Dependencies))
		for i, dep := range node.Dependencies {
			deps[i] = dep.String()
		}
		fmt.Fprintf(b, "%s  Dependencies: [%s]\n", indent, strings.Join(deps, ", "))
	}
}
