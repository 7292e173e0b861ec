package graph

import (
	"fmt"
	"sort"
	"strings"
)

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid renders the graph as a Mermaid flowchart, top-down.
func (g *StateGraph) DrawMermaid() string {
	return g.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions renders the graph as a Mermaid flowchart.
// Parallel groups are rendered as subgraphs containing their members.
func (g *StateGraph) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	if g.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString(fmt.Sprintf("    START --> %s\n", g.entryPoint))
	}

	for _, name := range g.order {
		if group, ok := g.groups[name]; ok {
			sb.WriteString(fmt.Sprintf("    subgraph %s\n", name))
			for _, m := range group.Members {
				sb.WriteString(fmt.Sprintf("        %s[\"%s\"]\n", m.Name, m.Name))
			}
			sb.WriteString("    end\n")
			continue
		}
		node := g.nodes[name]
		label := node.Name
		if node.Description != "" {
			label = node.Description
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", name, label))
	}

	sb.WriteString("    END([\"END\"])\n")

	// Sorted edge sources for consistent output
	sources := make([]string, 0, len(g.edges))
	for from := range g.edges {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	for _, from := range sources {
		edge := g.edges[from]
		if !edge.conditional() {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, edge.To))
			continue
		}

		if len(edge.Branches) > 0 {
			for i, b := range edge.Branches {
				sb.WriteString(fmt.Sprintf("    %s -.->|branch %d| %s\n", from, i+1, b.To))
			}
			continue
		}

		keys := make([]string, 0, len(edge.Targets))
		for key := range edge.Targets {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("    %s -.->|%s| %s\n", from, key, edge.Targets[key]))
		}
		if edge.Default != "" {
			sb.WriteString(fmt.Sprintf("    %s -.->|default| %s\n", from, edge.Default))
		}
	}

	return sb.String()
}
