package dom

import "net/url"

// SameDocument reports whether before and after address the same document
// for navigation-detection purposes: same origin, path, and query string.
// Hash-only differences do not count as navigation (spec.md §4.5 "origin+
// pathname+search comparison; hash-only is not navigation").
func SameDocument(before, after string) bool {
	if before == "" || after == "" {
		return before == after
	}
	bu, err1 := url.Parse(before)
	au, err2 := url.Parse(after)
	if err1 != nil || err2 != nil {
		return before == after
	}
	return bu.Scheme == au.Scheme && bu.Host == au.Host && bu.Path == au.Path && bu.RawQuery == au.RawQuery
}
