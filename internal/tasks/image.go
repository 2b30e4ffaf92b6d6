package tasks

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/types"
)

// maxImagePixels bounds decoded images so a small file cannot expand into
// an enormous allocation.
const maxImagePixels = 64 << 20

func imageOp() dispatch.Operation {
	return dispatch.Operation{
		Code:    "B7",
		Summary: "resize (parameter resize: [width, height]) or re-compress (parameter compress: JPEG quality 1-100) a PNG or JPEG image from input_path to output_path",
		Verb:    types.VerbConvert,
		Bind:    inOut("B7", "", ""),
		Run: func(_ context.Context, call *dispatch.Call) (any, error) {
			op := call.Task.Operation
			w, h, resize, err := call.Task.IntPairParam("resize")
			if err != nil {
				return nil, err
			}
			if resize && (w < 1 || h < 1 || w*h > maxImagePixels) {
				return nil, dispatch.Validation(op, "resize %dx%d is out of range", w, h)
			}
			quality, err := call.Task.IntParam("compress", jpeg.DefaultQuality)
			if err != nil {
				return nil, err
			}
			if quality < 1 || quality > 100 {
				return nil, dispatch.Validation(op, "compress quality must be 1-100")
			}

			in, err := call.RequireExisting("input")
			if err != nil {
				return nil, err
			}
			if err := checkSignature(in, filepath.Ext(in)); err != nil {
				return nil, dispatch.Validation(op, "%s: %v", call.Rel(in), err)
			}
			data, err := readCanonical(call, in)
			if err != nil {
				return nil, err
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return nil, dispatch.Validation(op, "%s is not a readable image", call.Rel(in))
			}
			if cfg.Width*cfg.Height > maxImagePixels {
				return nil, dispatch.Validation(op, "%s is too large to decode", call.Rel(in))
			}
			src, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, dispatch.Validation(op, "%s is not a readable image", call.Rel(in))
			}

			img := src
			if resize {
				dst := image.NewRGBA(image.Rect(0, 0, w, h))
				draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
				img = dst
			}

			out := call.Path("output")
			encoded, err := encodeImage(img, filepath.Ext(out), quality)
			if err != nil {
				return nil, dispatch.Validation(op, "%v", err)
			}
			if err := writeOutput(call, "output", encoded); err != nil {
				return nil, err
			}
			b := img.Bounds()
			return map[string]any{"output": call.Rel(out), "width": b.Dx(), "height": b.Dy(), "bytes": len(encoded)}, nil
		},
	}
}

func encodeImage(img image.Image, ext string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	default:
		return nil, errUnsupportedImage(ext)
	}
	return buf.Bytes(), nil
}

type errUnsupportedImage string

func (e errUnsupportedImage) Error() string {
	return "cannot encode images as " + string(e) + ", use .png or .jpg"
}
