package tasks

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
)

// Content types handlers accept, keyed by extension.
var signatures = map[string][]string{
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".db":   {"application/vnd.sqlite3"},
}

// sniff returns the detected content type of the file at p.
func sniff(p string) (*mimetype.MIME, error) {
	f, err := fileutil.OpenRead(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mimetype.DetectReader(f)
}

// checkSignature fails unless the content of p matches what its extension
// claims. Extensions without a known signature pass.
func checkSignature(p, ext string) error {
	want, ok := signatures[strings.ToLower(ext)]
	if !ok {
		return nil
	}
	mt, err := sniff(p)
	if err != nil {
		return err
	}
	for _, w := range want {
		if mt.Is(w) {
			return nil
		}
	}
	return fmt.Errorf("content is %s, not %s", mt.String(), strings.Join(want, " or "))
}
