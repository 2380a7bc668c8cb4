package runner

import (
	"testing"

	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

func TestComputeDiff_NoChangesReturnsNil(t *testing.T) {
	nodes := []snapshot.Node{{Role: "button", Name: "Save", Ref: "e1"}}
	if d := ComputeDiff(nodes, nodes, nil); d != nil {
		t.Errorf("ComputeDiff() = %+v, want nil", d)
	}
}

func TestComputeDiff_AddedAndRemoved(t *testing.T) {
	before := []snapshot.Node{{Role: "button", Name: "Cancel", Ref: "e1"}}
	after := []snapshot.Node{{Role: "button", Name: "Submit", Ref: "e2"}}

	d := ComputeDiff(before, after, []string{"Clicked"})
	if d == nil {
		t.Fatalf("ComputeDiff() = nil, want non-nil")
	}
	if len(d.Added) != 1 || len(d.Removed) != 1 {
		t.Errorf("Added/Removed = %v/%v, want 1 entry each", d.Added, d.Removed)
	}
	if len(d.Changes) != 0 {
		t.Errorf("Changes = %v, want empty", d.Changes)
	}
}

func TestComputeDiff_StateFieldChanged(t *testing.T) {
	before := []snapshot.Node{{Role: "checkbox", Name: "Agree", Ref: "e1", State: map[string]bool{"checked": false}}}
	after := []snapshot.Node{{Role: "checkbox", Name: "Agree", Ref: "e1", State: map[string]bool{"checked": true}}}

	d := ComputeDiff(before, after, nil)
	if d == nil {
		t.Fatalf("ComputeDiff() = nil, want non-nil")
	}
	if len(d.Changes) != 1 {
		t.Fatalf("len(Changes) = %d, want 1", len(d.Changes))
	}
	c := d.Changes[0]
	if c.Ref != "e1" || c.Field != "checked" || c.From != "false" || c.To != "true" {
		t.Errorf("Changes[0] = %+v, want {Ref:e1 Field:checked From:false To:true}", c)
	}
}

func TestComputeDiff_WalksChildren(t *testing.T) {
	before := []snapshot.Node{{Role: "list", Children: []snapshot.Node{{Role: "listitem", Name: "A", Ref: "e1"}}}}
	after := []snapshot.Node{{Role: "list", Children: []snapshot.Node{
		{Role: "listitem", Name: "A", Ref: "e1"},
		{Role: "listitem", Name: "B", Ref: "e2"},
	}}}

	d := ComputeDiff(before, after, nil)
	if d == nil {
		t.Fatalf("ComputeDiff() = nil, want non-nil")
	}
	if len(d.Added) != 1 {
		t.Errorf("len(Added) = %d, want 1", len(d.Added))
	}
}

func TestComputeDiff_CapsAtTen(t *testing.T) {
	var after []snapshot.Node
	for i := 0; i < 15; i++ {
		after = append(after, snapshot.Node{Role: "listitem", Ref: refName(i)})
	}
	d := ComputeDiff(nil, after, nil)
	if d == nil {
		t.Fatalf("ComputeDiff() = nil, want non-nil")
	}
	if len(d.Added) != 10 {
		t.Errorf("len(Added) = %d, want 10 (capped)", len(d.Added))
	}
}

func refName(i int) string {
	return string(rune('a'+i)) + "ref"
}
