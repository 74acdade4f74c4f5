// Package images - decoding, grayscale conversion and geometry helpers shared by
// the scoring stages.
package images

import (
	"bytes"
	"image"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrImageDecode is returned when an input file cannot be turned into pixels.
var ErrImageDecode = errors.New("image decode failed")

// Image is a decoded input photograph.
type Image struct {
	// Name identifies the image in diagnostics, usually its path.
	Name string `json:"name" yaml:"name"`
	// The format the image was decoded from.
	Format ImageFormat `json:"format" yaml:"format"`
	// Pixels holds the decoded image.
	Pixels image.Image `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// AutoOrient applies the EXIF orientation tag.
	AutoOrient bool
}

// Load reads and decodes the file at path.
//
// Arguments:
//   - path: The file to read. Its extension selects the decoder.
//   - opts: Decoding options.
//
// Returns:
//   - *Image: The decoded image.
//   - error: ErrImageDecode wrapped with the cause.
func Load(path string, opts DecodeOptions) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrImageDecode, "%s: %v", path, err)
	}
	return Decode(path, data, opts)
}

// Decode decodes data. name is used for format detection and diagnostics.
// Unknown extensions fall back to content sniffing.
func Decode(name string, data []byte, opts DecodeOptions) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(ErrImageDecode, "%s: empty file", name)
	}

	format, _ := FormatFromPath(name)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatCR2:
		img, err = decodeCR2(data, opts)
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(opts.AutoOrient))
	}
	if err != nil {
		return nil, errors.Wrapf(ErrImageDecode, "%s: %v", name, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, errors.Wrapf(ErrImageDecode, "%s: no pixels", name)
	}
	if format == "" {
		format = FormatJPEG
		if _, kind, cfgErr := image.DecodeConfig(bytes.NewReader(data)); cfgErr == nil {
			format = ImageFormat(kind)
		}
	}

	return &Image{
		Name:   name,
		Format: format,
		Pixels: img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func decodeCR2(data []byte, opts DecodeOptions) (image.Image, error) {
	preview, err := ExtractCR2Preview(data)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(preview.JPEG))
	if err != nil {
		return nil, errors.Wrap(err, "decode cr2 preview")
	}
	if opts.AutoOrient {
		img = orient(img, preview.Orientation)
	}
	return img, nil
}

// orient applies an EXIF orientation value.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
