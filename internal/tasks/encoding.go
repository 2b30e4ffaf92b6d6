package tasks

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is advertised on fetches. Setting it turns off net/http's
// transparent gzip, so decodeBody must handle every listed encoding.
const acceptEncoding = "zstd, gzip"

// maxZstdWindow bounds decoder memory regardless of what the frame header
// asks for.
const maxZstdWindow = 64 << 20

// decodedBody closes the decoder and then the underlying response body.
type decodedBody struct {
	io.Reader
	closeDecoder func()
	raw          io.Closer
}

func (b *decodedBody) Close() error {
	b.closeDecoder()
	return b.raw.Close()
}

// decodeBody replaces resp.Body with a reader that undoes its
// Content-Encoding. Decoded size is not limited here; callers cap what they
// read.
func decodeBody(resp *http.Response) error {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("gzip body: %w", err)
		}
		resp.Body = &decodedBody{Reader: zr, closeDecoder: func() { zr.Close() }, raw: resp.Body}
	case "zstd":
		zr, err := zstd.NewReader(resp.Body,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(maxZstdWindow),
		)
		if err != nil {
			return fmt.Errorf("zstd body: %w", err)
		}
		resp.Body = &decodedBody{Reader: zr, closeDecoder: zr.Close, raw: resp.Body}
	default:
		return fmt.Errorf("unsupported content encoding %q", enc)
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
