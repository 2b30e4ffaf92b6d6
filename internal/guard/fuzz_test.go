package guard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FuzzPathGuard checks that no input ever yields an Allow for a path outside
// the root, and that deny details never carry the host location.
func FuzzPathGuard(f *testing.F) {
	f.Add("a.txt")
	f.Add("../../etc/passwd")
	f.Add("/etc/passwd")
	f.Add("sub/../../data/a.txt")
	f.Add("link/../../x.txt")
	f.Add("esc.txt")
	f.Add("nope/../link/secret.txt")
	f.Add("./././a.txt/")
	f.Add("")
	f.Add("\x00")
	f.Add("a\u202e.txt")

	outer, err := filepath.EvalSymlinks(f.TempDir())
	if err != nil {
		f.Fatal(err)
	}
	root := filepath.Join(outer, "data")
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		f.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(outer, "outside"), 0o755); err != nil {
		f.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		f.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outer, "outside"), filepath.Join(root, "link")); err != nil {
		f.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outer, "outside", "secret.txt"), filepath.Join(root, "esc.txt")); err != nil {
		f.Fatal(err)
	}
	a, err := New(Config{Root: root, AllowedExtensions: []string{".txt"}, MaxFileSize: 100})
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, candidate string) {
		d := a.Authorize(Request{Paths: []string{candidate}, Verb: "read"})
		if !d.Allowed {
			if !d.Reason.Valid() {
				t.Fatalf("Check(%q) returned unknown reason %q", candidate, d.Reason)
			}
			if strings.Contains(d.Detail, outer) {
				t.Fatalf("Check(%q) detail %q leaks %q", candidate, d.Detail, outer)
			}
			return
		}
		got := d.Resolved[0]
		if got != root && !strings.HasPrefix(got, root+string(filepath.Separator)) {
			t.Fatalf("Check(%q) allowed %q outside %q", candidate, got, root)
		}
	})
}
