package dom

import "testing"

func TestSameDocument(t *testing.T) {
	cases := []struct {
		name, before, after string
		want                bool
	}{
		{"identical", "https://example.com/a?x=1", "https://example.com/a?x=1", true},
		{"hash only differs", "https://example.com/a", "https://example.com/a#section", true},
		{"hash changed twice", "https://example.com/a#one", "https://example.com/a#two", true},
		{"path changed", "https://example.com/a", "https://example.com/b", false},
		{"query changed", "https://example.com/a?x=1", "https://example.com/a?x=2", false},
		{"host changed", "https://example.com/a", "https://other.com/a", false},
		{"scheme changed", "http://example.com/a", "https://example.com/a", false},
		{"both empty", "", "", true},
		{"one empty", "https://example.com/a", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SameDocument(c.before, c.after); got != c.want {
				t.Errorf("SameDocument(%q, %q) = %v, want %v", c.before, c.after, got, c.want)
			}
		})
	}
}

func TestSameDocument_UnparsableFallsBackToExactMatch(t *testing.T) {
	bad := "http://example.com/path%zz"
	if got := SameDocument(bad, bad); !got {
		t.Errorf("SameDocument(%q, %q) = false, want true (identical unparsable strings)", bad, bad)
	}
	if got := SameDocument(bad, bad+"x"); got {
		t.Errorf("SameDocument(%q, %q) = true, want false", bad, bad+"x")
	}
}
