package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/guard"
)

func createTicketsDB(t *testing.T, p string) {
	t.Helper()
	db, err := sql.Open("sqlite3", p)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE tickets (type TEXT, units INTEGER, price REAL)`,
		`INSERT INTO tickets VALUES ('Gold', 2, 100.5), ('gold', 1, 1000), ('Silver', 3, 50), ('Gold', 1, 20)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTicketSales(t *testing.T) {
	h := newHarness(t, Deps{})
	createTicketsDB(t, filepath.Join(h.root, "ticket-sales.db"))

	h.mustRun(dispatch.Task{Operation: "A10"})
	if got := h.read("ticket-sales-gold.txt"); got != "221" {
		t.Errorf("gold total = %q, want 221", got)
	}

	h.mustRun(dispatch.Task{Operation: "A10", OutputPath: "silver.txt", Parameters: map[string]any{"type": "Silver"}})
	if got := h.read("silver.txt"); got != "150" {
		t.Errorf("silver total = %q, want 150", got)
	}

	h.mustRun(dispatch.Task{Operation: "A10", OutputPath: "none.txt", Parameters: map[string]any{"type": "Bronze"}})
	if got := h.read("none.txt"); got != "0" {
		t.Errorf("bronze total = %q, want 0", got)
	}

	h.write("fake.db", "this is not a database")
	_, err := h.run(dispatch.Task{Operation: "A10", InputPath: "fake.db"})
	if dispatch.KindOf(err) != dispatch.KindExecution {
		t.Errorf("fake db: err = %v, want execution", err)
	}
}

func TestFetchAPI(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		switch r.URL.Path {
		case "/data":
			fmt.Fprint(w, `{"items": [1, 2, 3]}`)
		case "/huge":
			w.Write(bytes.Repeat([]byte("x"), testMaxFileSize+1))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := newHarness(t, Deps{HTTP: srv.Client(), UserAgent: "dataworks-test"})

	h.mustRun(dispatch.Task{Operation: "B3", OutputPath: "api.json", Parameters: map[string]any{"api_url": srv.URL + "/data"}})
	if got := h.read("api.json"); got != `{"items": [1, 2, 3]}` {
		t.Errorf("saved = %q", got)
	}
	if gotUA != "dataworks-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	tests := []struct {
		name   string
		task   dispatch.Task
		status int
	}{
		{"not found", dispatch.Task{Operation: "B3", OutputPath: "x.json", Parameters: map[string]any{"api_url": srv.URL + "/missing"}}, http.StatusInternalServerError},
		{"too large", dispatch.Task{Operation: "B3", OutputPath: "big.txt", Parameters: map[string]any{"api_url": srv.URL + "/huge"}}, http.StatusRequestEntityTooLarge},
		{"file scheme", dispatch.Task{Operation: "B3", OutputPath: "x.json", Parameters: map[string]any{"api_url": "file:///etc/passwd"}}, http.StatusBadRequest},
		{"relative url", dispatch.Task{Operation: "B3", OutputPath: "x.json", Parameters: map[string]any{"api_url": "/data"}}, http.StatusBadRequest},
		{"no url", dispatch.Task{Operation: "B3", OutputPath: "x.json"}, http.StatusBadRequest},
		{"no output", dispatch.Task{Operation: "B3", Parameters: map[string]any{"api_url": srv.URL + "/data"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.task)
			if got := dispatch.HTTPStatus(err); got != tt.status {
				t.Errorf("status = %d, want %d (err %v)", got, tt.status, err)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(h.root, "big.txt")); err == nil {
		t.Error("oversize response left a file behind")
	}
}

func TestFetchAPI_ContentEncoding(t *testing.T) {
	payload := []byte(strings.Repeat(`{"id": 1, "name": "row"}`+"\n", 200))

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zstdBody := enc.EncodeAll(payload, nil)
	enc.Close()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(payload)
	gw.Close()

	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept-Encoding")
		switch r.URL.Path {
		case "/zstd":
			w.Header().Set("Content-Encoding", "zstd")
			w.Write(zstdBody)
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(gz.Bytes())
		case "/brotli":
			w.Header().Set("Content-Encoding", "br")
			w.Write([]byte("??"))
		case "/corrupt":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write([]byte("not gzip"))
		}
	}))
	defer srv.Close()
	h := newHarness(t, Deps{HTTP: srv.Client()})

	for _, enc := range []string{"zstd", "gzip"} {
		t.Run(enc, func(t *testing.T) {
			out := enc + ".json"
			h.mustRun(dispatch.Task{Operation: "B3", OutputPath: out, Parameters: map[string]any{"api_url": srv.URL + "/" + enc}})
			if got := h.read(out); got != string(payload) {
				t.Errorf("decoded %d bytes, want %d", len(got), len(payload))
			}
		})
	}
	if gotAccept != acceptEncoding {
		t.Errorf("Accept-Encoding = %q", gotAccept)
	}

	for _, path := range []string{"/brotli", "/corrupt"} {
		_, err := h.run(dispatch.Task{Operation: "B3", OutputPath: "bad.json", Parameters: map[string]any{"api_url": srv.URL + path}})
		if got := dispatch.HTTPStatus(err); got != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500 (err %v)", path, got, err)
		}
	}
	if _, err := os.Stat(filepath.Join(h.root, "bad.json")); err == nil {
		t.Error("undecodable response left a file behind")
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><style>h2{}</style></head><body>
			<h2>First <b>story</b></h2><p>text</p>
			<div><h2>
				Second   story</h2></div>
			<h2><script>var x;</script></h2>
		</body></html>`)
	}))
	defer srv.Close()
	h := newHarness(t, Deps{HTTP: srv.Client()})

	h.mustRun(dispatch.Task{Operation: "B6", OutputPath: "page.html", Parameters: map[string]any{"url": srv.URL}})
	if got := h.read("page.html"); !strings.Contains(got, "<h2>First") {
		t.Errorf("raw page not saved: %q", got)
	}

	res := h.mustRun(dispatch.Task{Operation: "B6", OutputPath: "titles.json", Parameters: map[string]any{"url": srv.URL, "tag": "H2"}})
	got := h.read("titles.json")
	if !strings.Contains(got, `"First story"`) || !strings.Contains(got, `"Second story"`) || strings.Contains(got, "var x") {
		t.Errorf("titles = %s", got)
	}
	if m, ok := res.Output.(map[string]any); !ok || m["elements"] != 2 {
		t.Errorf("result = %+v", res.Output)
	}
}

func TestGitCommit(t *testing.T) {
	r := &fakeRunner{}
	r.fn = func(dir, name string, args []string) error {
		if len(args) > 0 && args[0] == "clone" {
			return os.MkdirAll(filepath.Join(args[len(args)-1], ".git"), 0o755)
		}
		return nil
	}
	h := newHarness(t, Deps{Runner: r})

	res := h.mustRun(dispatch.Task{Operation: "B4", Parameters: map[string]any{
		"repo_url":       "https://example.com/org/repo.git",
		"file_path":      "docs/notes.md",
		"content":        "# hello\n",
		"commit_message": "Add notes",
	}})
	if got := h.read("repo/docs/notes.md"); got != "# hello\n" {
		t.Errorf("file content = %q", got)
	}
	if len(r.calls) != 3 {
		t.Fatalf("runner calls = %d, want clone, add, commit", len(r.calls))
	}
	clone, add, commit := r.calls[0], r.calls[1], r.calls[2]
	if clone.name != "git" || clone.args[0] != "clone" || clone.args[len(clone.args)-2] != "https://example.com/org/repo.git" {
		t.Errorf("clone = %+v", clone)
	}
	if add.dir != filepath.Join(h.root, "repo") || strings.Join(add.args, " ") != "add -- "+filepath.Join("docs", "notes.md") {
		t.Errorf("add = %+v", add)
	}
	if !strings.Contains(strings.Join(commit.args, " "), "commit --no-verify -m Add notes") {
		t.Errorf("commit = %+v", commit)
	}
	if m := res.Output.(map[string]any); m["cloned"] != true || m["committed"] != true {
		t.Errorf("result = %+v", m)
	}

	// Existing repo: no second clone.
	r.calls = nil
	h.mustRun(dispatch.Task{Operation: "B4", Parameters: map[string]any{"file_path": "b.txt", "content": "b"}})
	if len(r.calls) != 2 || r.calls[0].args[0] != "add" {
		t.Errorf("calls on existing repo = %+v", r.calls)
	}

	tests := []struct {
		name   string
		params map[string]any
		kind   dispatch.Kind
	}{
		{"ssh remote", map[string]any{"repo_dir": "other", "repo_url": "git@example.com:org/repo.git"}, dispatch.KindValidation},
		{"ext transport", map[string]any{"repo_dir": "other", "repo_url": "ext::sh -c touch% /tmp/pwned"}, dispatch.KindValidation},
		{"no url", map[string]any{"repo_dir": "other"}, dispatch.KindValidation},
		{"escape repo", map[string]any{"file_path": "../escape.txt", "content": "x"}, dispatch.KindValidation},
		{"into .git", map[string]any{"file_path": ".git/hooks.txt", "content": "x"}, dispatch.KindValidation},
		{"absolute file", map[string]any{"file_path": "/etc/x.txt", "content": "x"}, dispatch.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(dispatch.Task{Operation: "B4", Parameters: tt.params})
			if dispatch.KindOf(err) != tt.kind {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(h.root, "escape.txt")); err == nil {
		t.Error("file written outside the repository")
	}

	_, err := h.run(dispatch.Task{Operation: "B4", Parameters: map[string]any{"file_path": "big.txt", "content": strings.Repeat("x", testMaxFileSize+1)}})
	var de *guard.DenyError
	if !errors.As(err, &de) || de.Reason != guard.ReasonFileTooLarge {
		t.Errorf("oversize content: err = %v, want file_too_large", err)
	}
}

func TestGitCommit_LinkPlantedByClone(t *testing.T) {
	outside := t.TempDir()
	r := &fakeRunner{}
	r.fn = func(dir, name string, args []string) error {
		if args[0] != "clone" {
			return nil
		}
		repo := args[len(args)-1]
		if err := os.MkdirAll(repo, 0o755); err != nil {
			return err
		}
		return os.Symlink(outside, filepath.Join(repo, "docs"))
	}
	h := newHarness(t, Deps{Runner: r})

	_, err := h.run(dispatch.Task{Operation: "B4", Parameters: map[string]any{
		"repo_url":  "https://example.com/r.git",
		"file_path": "docs/pwn.txt",
		"content":   "x",
	}})
	var de *guard.DenyError
	if !errors.As(err, &de) || de.Reason != guard.ReasonOutsideSandbox {
		t.Fatalf("err = %v, want outside_sandbox", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "pwn.txt")); err == nil {
		t.Error("write followed a link planted by the clone")
	}
}

func TestSQLQuery(t *testing.T) {
	h := newHarness(t, Deps{})
	createTicketsDB(t, filepath.Join(h.root, "sales.db"))

	query := "SELECT type, SUM(units) AS units FROM tickets GROUP BY type ORDER BY type"
	h.mustRun(dispatch.Task{Operation: "B5", OutputPath: "out.csv", Parameters: map[string]any{"db_path": "sales.db", "query": query}})
	if got, want := h.read("out.csv"), "type,units\nGold,3\nSilver,3\ngold,1\n"; got != want {
		t.Errorf("csv = %q, want %q", got, want)
	}

	h.mustRun(dispatch.Task{Operation: "B5", OutputPath: "out.json", Parameters: map[string]any{"db_path": "sales.db", "query": query}})
	if got := h.read("out.json"); !strings.Contains(got, `"type": "Silver"`) || !strings.Contains(got, `"units": 3`) {
		t.Errorf("json = %s", got)
	}

	_, err := h.run(dispatch.Task{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.db", "query": "DELETE FROM tickets"}})
	var de *guard.DenyError
	if !errors.As(err, &de) || de.Reason != guard.ReasonRestrictedOperation {
		t.Errorf("delete query: err = %v, want restricted_operation", err)
	}

	_, err = h.run(dispatch.Task{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.db", "query": "UPDATE tickets SET units = 0"}})
	if dispatch.KindOf(err) != dispatch.KindValidation {
		t.Errorf("update query: err = %v, want validation", err)
	}
	h.mustRun(dispatch.Task{Operation: "B5", OutputPath: "check.csv", Parameters: map[string]any{"db_path": "sales.db", "query": "SELECT SUM(units) AS n FROM tickets"}})
	if got := h.read("check.csv"); got != "n\n7\n" {
		t.Errorf("database changed: %q", got)
	}

	tests := []dispatch.Task{
		{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"query": "SELECT 1"}},
		{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.duckdb", "query": "SELECT 1"}},
		{Operation: "B5", Parameters: map[string]any{"db_path": "sales.db", "query": "SELECT 1"}},
		{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.db"}},
		{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.db", "query": "SELECT * FROM nope"}},
	}
	for i, task := range tests {
		if _, err := h.run(task); dispatch.KindOf(err) != dispatch.KindValidation {
			t.Errorf("case %d: err = %v, want validation", i, err)
		}
	}
}

func TestSQLQuery_OtherDatabases(t *testing.T) {
	h := newHarness(t, Deps{})
	outside := filepath.Dir(h.root)
	createTicketsDB(t, filepath.Join(h.root, "sales.db"))
	createTicketsDB(t, filepath.Join(outside, "other.db"))

	refused := []string{
		"ATTACH DATABASE '" + filepath.Join(outside, "other.db") + "' AS s; SELECT * FROM s.tickets",
		"attach '" + filepath.Join(outside, "other.db") + "' as s",
		"DETACH main",
		"VACUUM INTO '" + filepath.Join(outside, "copy.db") + "'",
		"PRAGMA database_list",
		"SELECT file FROM pragma_database_list",
		`SELECT * FROM "Pragma_Database_List"`,
		"SELECT load_extension('x')",
		"SELECT 1; /* */ attach 'x.db' as y",
	}
	for _, q := range refused {
		_, err := h.run(dispatch.Task{Operation: "B5", OutputPath: "x.csv", Parameters: map[string]any{"db_path": "sales.db", "query": q}})
		if dispatch.KindOf(err) != dispatch.KindValidation {
			t.Errorf("query %q: err = %v, want validation", q, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outside, "copy.db")); err == nil {
		t.Error("VACUUM INTO wrote outside the sandbox")
	}
	if _, err := os.Stat(filepath.Join(h.root, "x.csv")); err == nil {
		t.Error("refused query produced output")
	}

	q := "SELECT 'attach' AS w /* pragma */ -- vacuum\n, 'it''s pragma_x' AS v"
	h.mustRun(dispatch.Task{Operation: "B5", OutputPath: "ok.csv", Parameters: map[string]any{"db_path": "sales.db", "query": q}})
	if got, want := h.read("ok.csv"), "w,v\nattach,it's pragma_x\n"; got != want {
		t.Errorf("csv = %q, want %q", got, want)
	}
}

func writeImage(t *testing.T, p string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImage(t *testing.T) {
	h := newHarness(t, Deps{})
	writeImage(t, filepath.Join(h.root, "photo.png"), 20, 10)

	h.mustRun(dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "small.jpg",
		Parameters: map[string]any{"resize": []any{4, 2}}})
	f, err := os.Open(filepath.Join(h.root, "small.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 2 {
		t.Errorf("size = %dx%d, want 4x2", cfg.Width, cfg.Height)
	}

	h.mustRun(dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "copy.png"})
	if !strings.HasPrefix(h.read("copy.png"), "\x89PNG") {
		t.Error("copy.png is not a PNG")
	}

	h.write("fake.png", "not an image at all")
	tests := []struct {
		name string
		task dispatch.Task
	}{
		{"signature mismatch", dispatch.Task{Operation: "B7", InputPath: "fake.png", OutputPath: "o.png"}},
		{"bad resize", dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "o.png", Parameters: map[string]any{"resize": []any{0, 5}}}},
		{"resize shape", dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "o.png", Parameters: map[string]any{"resize": "4x2"}}},
		{"bad quality", dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "o.jpg", Parameters: map[string]any{"compress": 101}}},
		{"unencodable output", dispatch.Task{Operation: "B7", InputPath: "photo.png", OutputPath: "o.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.run(tt.task); dispatch.KindOf(err) != dispatch.KindValidation {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	h := newHarness(t, Deps{})
	h.write("readme.md", "# Title\n\nSome *text* and <script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")

	h.mustRun(dispatch.Task{Operation: "B9", InputPath: "readme.md", OutputPath: "readme.html"})
	got := h.read("readme.html")
	for _, want := range []string{"<h1>Title</h1>", "<em>text</em>", "<table>"} {
		if !strings.Contains(got, want) {
			t.Errorf("html missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw html passed through:\n%s", got)
	}

	if _, err := h.run(dispatch.Task{Operation: "B9", InputPath: "readme.md"}); dispatch.KindOf(err) != dispatch.KindValidation {
		t.Errorf("no output: err = %v, want validation", err)
	}
}

func TestFilterCSV(t *testing.T) {
	h := newHarness(t, Deps{})
	p := h.write("people.csv", "name,city,age\nAda,London,36\nBob,Paris,41\nCy,London\nDee,london,29\n")

	rows, err := FilterCSV(p, "city", "London", testMaxFileSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["name"] != "Ada" || rows[1]["name"] != "Cy" {
		t.Errorf("rows = %v", rows)
	}
	if _, ok := rows[1]["age"]; ok {
		t.Errorf("short record should omit missing fields: %v", rows[1])
	}

	if _, err := FilterCSV(p, "country", "UK", testMaxFileSize); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("unknown column: err = %v", err)
	}
	if _, err := FilterCSV(p, "city", "London", 10); err == nil {
		t.Error("oversize file was read")
	}

	res := h.mustRun(dispatch.Task{Operation: "B10", Parameters: map[string]any{"file_path": "people.csv", "column": "city", "value": "Paris"}})
	if got, ok := res.Output.([]map[string]string); !ok || len(got) != 1 || got[0]["name"] != "Bob" {
		t.Errorf("result = %+v", res.Output)
	}

	h.mustRun(dispatch.Task{Operation: "B10", OutputPath: "london.json", Parameters: map[string]any{"file_path": "people.csv", "column": "city", "value": "London"}})
	if got := h.read("london.json"); !strings.Contains(got, `"name": "Ada"`) {
		t.Errorf("saved = %s", got)
	}

	if _, err := h.run(dispatch.Task{Operation: "B10", Parameters: map[string]any{"file_path": "people.csv", "column": "nope"}}); dispatch.KindOf(err) != dispatch.KindValidation {
		t.Errorf("unknown column via task: err = %v", err)
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	out, err := ExecRunner{}.Run(context.Background(), dir, "/bin/sh", "-c", "pwd; echo $GIT_TERMINAL_PROMPT")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 || lines[1] != "0" {
		t.Errorf("output = %q", out)
	}

	if _, err := (ExecRunner{}).Run(context.Background(), dir, "/bin/sh", "-c", "echo boom >&2; exit 3"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("failure err = %v", err)
	}
}
