package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDigest(t *testing.T) {
	dir := t.TempDir()
	id1, err := Digest(writeFile(t, dir, "a.pdf", "same content"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := Digest(writeFile(t, dir, "b.pdf", "same content"))
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("same content should give same digest: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("digest should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+64 {
		t.Errorf("unexpected digest length: %q", id1)
	}
}

func TestDigest_differentContent(t *testing.T) {
	dir := t.TempDir()
	id1, _ := Digest(writeFile(t, dir, "a.pdf", "one"))
	id2, _ := Digest(writeFile(t, dir, "b.pdf", "two"))
	if id1 == id2 {
		t.Errorf("different content should give different digests: %q", id1)
	}
}

func TestDigest_missingFile(t *testing.T) {
	if _, err := Digest(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDigestReader(t *testing.T) {
	got, err := DigestReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	want := prefix + "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("DigestReader(\"\") = %q, want %q", got, want)
	}
}
