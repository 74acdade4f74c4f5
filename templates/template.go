// Package templates - the reference embossing pattern.
//
// The pattern ships inside the binary as versioned base64 PNG payloads under
// reference/. A payload named v<version>.b64 is selected by config.Template.Version.
package templates

import (
	"bytes"
	"embed"
	"encoding/base64"
	"image"
	"image/draw"
	"image/png"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/images"
)

// ErrTemplateDecode is returned when the embedded pattern cannot be turned into a Mat.
var ErrTemplateDecode = errors.New("template decode failed")

//go:embed reference/*.b64
var reference embed.FS

// Orientation selects which variant of the template is correlated.
type Orientation int

const (
	// Normal is the template as stored.
	Normal Orientation = iota
	// Mirrored is the template with its rows reversed.
	Mirrored
)

// Orientations lists every variant in matching order.
var Orientations = []Orientation{Normal, Mirrored}

func (o Orientation) String() string {
	switch o {
	case Normal:
		return "normal"
	case Mirrored:
		return "mirrored"
	}
	return "unknown"
}

// Template is the decoded reference pattern. It is read-only once loaded and may
// be shared between goroutines.
type Template struct {
	// Mat is a single channel CV32F image with values in [0,1].
	Mat gocv.Mat
	// Version is the payload the template was decoded from.
	Version string
	// Size is the template width and height.
	Size image.Point
}

// Versions returns the embedded payload versions, sorted.
func Versions() []string {
	entries, err := reference.ReadDir("reference")
	if err != nil {
		return nil
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "v") || path.Ext(name) != ".b64" {
			continue
		}
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".b64"))
	}
	sort.Strings(versions)
	return versions
}

// Load decodes the embedded pattern selected by cfg.
//
// Arguments:
//   - cfg: Selects the version, rows trimmed from top and bottom, and scale.
//
// Returns:
//   - *Template: The decoded template. The caller owns it and must Close it.
//   - error: ErrTemplateDecode wrapped with the cause.
//
// @example
//
//	tmpl, err := templates.Load(config.Default().Template)
//	if err != nil {
//	    log.Fatalf("template: %v", err)
//	}
//	defer tmpl.Close()
func Load(cfg config.Template) (*Template, error) {
	payload, err := reference.ReadFile(path.Join("reference", "v"+cfg.Version+".b64"))
	if err != nil {
		return nil, errors.Wrapf(ErrTemplateDecode, "unknown version %q (have %v)", cfg.Version, Versions())
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(payload)))
	if err != nil {
		return nil, errors.Wrapf(ErrTemplateDecode, "base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(ErrTemplateDecode, "png: %v", err)
	}

	trimmed, err := trimRows(img, cfg.TrimRows)
	if err != nil {
		return nil, err
	}
	scaled, err := images.ScaleImage(trimmed, cfg.Scale)
	if err != nil {
		return nil, errors.Wrapf(ErrTemplateDecode, "%v", err)
	}

	mat, err := images.GrayMat(scaled)
	if err != nil {
		return nil, errors.Wrapf(ErrTemplateDecode, "%v", err)
	}

	return &Template{
		Mat:     mat,
		Version: cfg.Version,
		Size:    images.MatSize(mat),
	}, nil
}

// trimRows drops n rows from the top and from the bottom of img.
func trimRows(img image.Image, n int) (image.Image, error) {
	b := img.Bounds()
	if n < 0 || b.Dy()-2*n <= 0 {
		return nil, errors.Wrapf(ErrTemplateDecode, "trimming %d rows leaves nothing of %d", n, b.Dy())
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()-2*n))
	draw.Draw(out, out.Bounds(), img, image.Pt(b.Min.X, b.Min.Y+n), draw.Src)
	return out, nil
}

// Oriented returns a new Mat holding the requested variant. The caller owns it.
func (t *Template) Oriented(o Orientation) (gocv.Mat, error) {
	switch o {
	case Normal:
		return t.Mat.Clone(), nil
	case Mirrored:
		dst := gocv.NewMat()
		// Flip code 0 reverses rows.
		if err := gocv.Flip(t.Mat, &dst, 0); err != nil {
			dst.Close()
			return gocv.NewMat(), errors.Wrap(err, "mirror template")
		}
		return dst, nil
	}
	return gocv.NewMat(), errors.Errorf("unknown orientation %d", o)
}

// Close releases the template Mat.
func (t *Template) Close() error {
	return t.Mat.Close()
}
