// Package siteprofile stores and retrieves the per-domain markdown
// knowledge blobs surfaced on every navigation (spec.md §3 "Site profile").
// Content is opaque to the engine; only storage and lookup semantics are in
// scope (spec.md §1 "Out of scope").
package siteprofile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

var nonDomainChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Normalize strips a leading "www." and replaces any character outside
// [a-zA-Z0-9.-] with "_" (spec.md §3).
func Normalize(domain string) string {
	d := strings.TrimPrefix(strings.ToLower(domain), "www.")
	return nonDomainChars.ReplaceAllString(d, "_")
}

// Store reads and writes site profiles under baseDir, with a short-lived
// read-through cache so repeated navigations to the same domain within one
// process don't re-hit disk (spec.md §2 "one read per navigation").
type Store struct {
	baseDir string
	cache   *cache.Cache
}

// DefaultBaseDir returns ~/.cdp-skill/sites (spec.md §6 "Persistent
// artifacts on disk").
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("siteprofile: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cdp-skill", "sites"), nil
}

// New creates a Store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("siteprofile: create base dir: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

func (s *Store) path(domain string) string {
	return filepath.Join(s.baseDir, Normalize(domain)+".md")
}

// Read returns the profile content for domain, or ("", false) if none
// exists.
func (s *Store) Read(domain string) (string, bool) {
	key := Normalize(domain)
	if v, ok := s.cache.Get(key); ok {
		return v.(string), true
	}

	b, err := os.ReadFile(s.path(domain))
	if err != nil {
		return "", false
	}
	content := string(b)
	s.cache.SetDefault(key, content)
	return content, true
}

// Write persists content for domain and refreshes the cache entry (spec.md
// §3 "one conditional write per writeSiteProfile step").
func (s *Store) Write(domain, content string) error {
	if err := os.WriteFile(s.path(domain), []byte(content), 0o644); err != nil {
		return fmt.Errorf("siteprofile: write %q: %w", domain, err)
	}
	s.cache.SetDefault(Normalize(domain), content)
	return nil
}
