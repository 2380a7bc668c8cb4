package runner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cdp-skill/cdp-skill/internal/schema"
	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

// diffStateFields are the state attributes the viewport diff compares
// (spec.md §4.6 "checked, expanded, disabled, selected, pressed, required,
// readonly, focused").
var diffStateFields = []string{"checked", "expanded", "disabled", "selected", "pressed", "required", "readonly", "focused"}

type refEntry struct {
	Role  string
	Name  string
	State map[string]bool
}

// collectRefs walks a tree's nodes and indexes every ref-bearing node by its
// ref string (spec.md §4.6 "Parse the two snapshots... for each ref,
// extract role, name, and state attributes").
func collectRefs(nodes []snapshot.Node, out map[string]refEntry) {
	for _, n := range nodes {
		if n.Ref != "" {
			out[n.Ref] = refEntry{Role: n.Role, Name: n.Name, State: n.State}
		}
		if len(n.Children) > 0 {
			collectRefs(n.Children, out)
		}
	}
}

// ComputeDiff builds the viewport diff between two bracketing internal
// snapshots of the same page (spec.md §4.6). actionContexts labels the
// command's executed actions for the summary prefix.
func ComputeDiff(before, after []snapshot.Node, actionContexts []string) *schema.Diff {
	beforeRefs := map[string]refEntry{}
	afterRefs := map[string]refEntry{}
	collectRefs(before, beforeRefs)
	collectRefs(after, afterRefs)

	var added, removed []string
	var changes []schema.DiffChange

	for ref, a := range afterRefs {
		if _, ok := beforeRefs[ref]; !ok {
			added = append(added, formatRefLine(ref, a))
		}
	}
	for ref, b := range beforeRefs {
		if _, ok := afterRefs[ref]; !ok {
			removed = append(removed, formatRefLine(ref, b))
		}
	}
	for ref, b := range beforeRefs {
		a, ok := afterRefs[ref]
		if !ok {
			continue
		}
		for _, field := range diffStateFields {
			from, to := b.State[field], a.State[field]
			if from != to {
				changes = append(changes, schema.DiffChange{
					Ref: ref, Field: field,
					From: boolFieldString(from), To: boolFieldString(to),
				})
			}
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Ref < changes[j].Ref })

	if len(added) == 0 && len(removed) == 0 && len(changes) == 0 {
		return nil
	}

	diff := &schema.Diff{Summary: summarize(actionContexts, added, removed, changes)}
	diff.Added = capStrings(added, 10)
	diff.Removed = capStrings(removed, 10)
	if len(changes) > 10 {
		changes = changes[:10]
	}
	diff.Changes = changes
	return diff
}

func boolFieldString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatRefLine(ref string, e refEntry) string {
	if e.Name != "" {
		return fmt.Sprintf("- %s %q [%s]", e.Role, e.Name, ref)
	}
	return fmt.Sprintf("- %s [%s]", e.Role, ref)
}

func capStrings(ss []string, n int) []string {
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}

// summarize builds the diff's summary string, prefixed by an action-context
// label derived from the step types executed this command (spec.md §4.6
// "a summary string prefixed by an action context... Clicked, Scrolled,
// Typed").
func summarize(actionContexts, added, removed []string, changes []schema.DiffChange) string {
	prefix := "Changed"
	if len(actionContexts) > 0 {
		prefix = actionContexts[len(actionContexts)-1]
	}
	parts := []string{}
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("%d added", len(added)))
	}
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", len(removed)))
	}
	if len(changes) > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", len(changes)))
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(parts, ", "))
}
