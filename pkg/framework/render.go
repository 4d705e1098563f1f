package framework

import (
	"fmt"
	"sort"
	"strings"
)

// Render generates a Mermaid flowchart for a compiled graph. Conditional
// edges are drawn once per label, fork edges as dotted fan-out/fan-in and
// failure edges of nodes that declare OnError or retries as dashed arrows.
func Render(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, n := range g.nodes {
		shape := "[%s]"
		switch {
		case n.Name == g.entry:
			shape = "([%s])"
		case g.IsTerminal(n.Name):
			shape = "[[%s]]"
		}
		fmt.Fprintf(&b, "    %s"+shape+"\n", sanitizeID(n.Name), n.Name)
	}

	for _, e := range g.edges {
		from := sanitizeID(e.From)
		label := e.Name
		if label == "" {
			label = e.ID
		}
		switch e.Kind {
		case EdgeConditional:
			labels := make([]string, 0, len(e.Routes))
			for l := range e.Routes {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				fmt.Fprintf(&b, "    %s -->|\"%s: %s\"| %s\n", from, e.ID, l, sanitizeID(e.Routes[l]))
			}
		case EdgeFork:
			for _, br := range e.Branches {
				fmt.Fprintf(&b, "    %s -.->|\"%s: %s\"| %s\n", from, e.ID, label, sanitizeID(br))
				fmt.Fprintf(&b, "    %s -.-> %s\n", sanitizeID(br), sanitizeID(e.Join))
			}
		default:
			fmt.Fprintf(&b, "    %s -->|\"%s: %s\"| %s\n", from, e.ID, label, sanitizeID(e.To))
		}
	}

	for _, n := range g.nodes {
		if n.Name == ErrorNode || (n.OnError == "" && n.MaxRetries == 0) {
			continue
		}
		fmt.Fprintf(&b, "    %s -. on_error .-> %s\n", sanitizeID(n.Name), sanitizeID(n.failTarget()))
	}
	return b.String()
}

func sanitizeID(s string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(s)
}
