package graph

import "strings"

// CircularDependencyError reports a cycle. Path starts at the node where
// the cycle was found and follows dependency edges back towards it.
type CircularDependencyError struct {
	Node NodeKey
	Path []NodeKey
}

func (e CircularDependencyError) Error() string {
	path := e.Path
	if len(path) == 0 {
		path = []NodeKey{e.Node}
	}

	names := make([]string, 0, len(path)+1)
	for _, n := range path {
		names = append(names, n.String())
	}
	names = append(names, path[0].String())

	return "circular dependency detected: " + strings.Join(names, " -> ") +
		"\n  break it with an interface, or resolve one side later through scopedi.Context"
}
