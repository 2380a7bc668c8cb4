package siteprofile

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"www.example.com", "example.com"},
		{"Example.COM", "example.com"},
		{"sub.example.com", "sub.example.com"},
		{"example.com:8080", "example.com_8080"},
		{"www.WWW.example.com", "www.example.com"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, ok := s.Read("example.com"); ok {
		t.Fatalf("Read() on empty store = found, want not found")
	}

	if err := s.Write("example.com", "# notes\nlogin via SSO"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, ok := s.Read("example.com")
	if !ok {
		t.Fatalf("Read() after Write() not found")
	}
	if got != "# notes\nlogin via SSO" {
		t.Errorf("Read() = %q, want %q", got, "# notes\nlogin via SSO")
	}
}

func TestReadWrite_DomainVariantsShareOneProfile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Write("www.example.com", "content"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, ok := s.Read("EXAMPLE.com")
	if !ok {
		t.Fatalf("Read() with differently-cased/www domain not found")
	}
	if got != "content" {
		t.Errorf("Read() = %q, want %q", got, "content")
	}
}

func TestWrite_PersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()

	s1, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s1.Write("example.com", "v1"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	s2, err := New(dir)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	got, ok := s2.Read("example.com")
	if !ok || got != "v1" {
		t.Errorf("Read() on fresh Store = (%q, %v), want (v1, true)", got, ok)
	}
}
