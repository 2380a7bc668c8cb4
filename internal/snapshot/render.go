package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// inlineThresholdBytes and maxRefsInline gate the "large snapshots" spill-to-file
// behavior (spec.md §4.4).
const (
	inlineThresholdBytes = 9000
	maxRefsInline         = 1000
)

// Render produces the YAML-like text for a tree, plus the total ref count
// (used by the caller to decide whether to spill to a file).
func Render(t *Tree) (yamlText string, refCount int) {
	var b strings.Builder
	if t.Scope == "main" && len(t.OtherLandmarks) > 0 {
		sorted := append([]string(nil), t.OtherLandmarks...)
		sort.Strings(sorted)
		b.WriteString(fmt.Sprintf("# other landmarks on this page: %s\n", strings.Join(sorted, ", ")))
	}
	for _, n := range t.Nodes {
		refCount += renderNode(&b, n, 0)
	}
	return b.String(), refCount
}

// ShouldSpill reports whether the rendered snapshot exceeds the inline
// thresholds and must be written to a file instead.
func ShouldSpill(yamlText string, refCount int) bool {
	return len(yamlText) > inlineThresholdBytes || refCount > maxRefsInline
}

func renderNode(b *strings.Builder, n Node, depth int) int {
	if n.Role == "#text" {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Text)
		b.WriteString("\n")
		return 0
	}

	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString("- ")
	b.WriteString(n.Role)
	if n.Heading > 0 {
		fmt.Fprintf(b, " level=%d", n.Heading)
	}
	if n.Name != "" {
		fmt.Fprintf(b, " %q", n.Name)
	}
	if len(n.State) > 0 {
		keys := make([]string, 0, len(n.State))
		for k := range n.State {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var flags []string
		for _, k := range keys {
			if n.State[k] {
				flags = append(flags, k)
			}
		}
		if len(flags) > 0 {
			fmt.Fprintf(b, " [%s]", strings.Join(flags, ", "))
		}
	}
	if n.Field != "" {
		fmt.Fprintf(b, " field=%s", n.Field)
	}
	if n.Value != "" {
		fmt.Fprintf(b, " value=%q", n.Value)
	}
	if n.Href != "" {
		fmt.Fprintf(b, " href=%q", n.Href)
	}
	refs := 0
	if n.Ref != "" {
		fmt.Fprintf(b, " [%s]", n.Ref)
		refs = 1
	}
	b.WriteString("\n")

	for _, c := range n.Children {
		refs += renderNode(b, c, depth+1)
	}
	return refs
}
