package guard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sandbox lays out:
//
//	outer/
//	  data/            <- root
//	    a.txt          (10 bytes)
//	    big.json       (2000 bytes)
//	    photo.JPG
//	    sub/b.md
//	    link     -> outer/outside
//	    esc.txt  -> outer/outside/secret.txt
//	    dangle.txt -> /nonexistent-dataworks/x.txt
//	    alias.txt  -> data/new.txt (dangling, inside)
//	  data-other/x.txt
//	  outside/secret.txt
type sandbox struct {
	outer string
	root  string
}

func newSandbox(t *testing.T) sandbox {
	t.Helper()
	outer, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sb := sandbox{outer: outer, root: filepath.Join(outer, "data")}

	mkdir := func(p string) {
		t.Helper()
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	write := func(p string, n int) {
		t.Helper()
		if err := os.WriteFile(p, []byte(strings.Repeat("x", n)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	link := func(target, p string) {
		t.Helper()
		if err := os.Symlink(target, p); err != nil {
			t.Fatal(err)
		}
	}

	mkdir(filepath.Join(sb.root, "sub"))
	mkdir(filepath.Join(outer, "data-other"))
	mkdir(filepath.Join(outer, "outside"))
	write(filepath.Join(sb.root, "a.txt"), 10)
	write(filepath.Join(sb.root, "big.json"), 2000)
	write(filepath.Join(sb.root, "photo.JPG"), 10)
	write(filepath.Join(sb.root, "sub", "b.md"), 10)
	write(filepath.Join(outer, "data-other", "x.txt"), 10)
	write(filepath.Join(outer, "outside", "secret.txt"), 10)
	link(filepath.Join(outer, "outside"), filepath.Join(sb.root, "link"))
	link(filepath.Join(outer, "outside", "secret.txt"), filepath.Join(sb.root, "esc.txt"))
	link("/nonexistent-dataworks/x.txt", filepath.Join(sb.root, "dangle.txt"))
	link(filepath.Join(sb.root, "new.txt"), filepath.Join(sb.root, "alias.txt"))
	link("loop2", filepath.Join(sb.root, "loop1"))
	link("loop1", filepath.Join(sb.root, "loop2"))
	return sb
}

func (sb sandbox) authorizer(t *testing.T) *Authorizer {
	t.Helper()
	a, err := New(Config{
		Root:                 sb.root,
		AllowedExtensions:    []string{".txt", ".json", ".md", ".jpg"},
		RestrictedOperations: []string{"delete", "remove", "rm", "rmdir", "unlink"},
		MaxFileSize:          1000,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// assertNoLeak fails if a deny detail reveals where the sandbox lives.
func (sb sandbox) assertNoLeak(t *testing.T, d Decision) {
	t.Helper()
	if strings.Contains(d.Detail, sb.outer) {
		t.Errorf("detail %q leaks host path %q", d.Detail, sb.outer)
	}
	if strings.Contains(d.Detail, "/etc") || strings.Contains(d.Detail, "nonexistent-dataworks") {
		t.Errorf("detail %q leaks a path outside the sandbox", d.Detail)
	}
}
