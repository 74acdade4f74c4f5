package images

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// TIFF tags read from the first IFD of a CR2 file.
const (
	tagStripOffsets    = 0x0111
	tagOrientation     = 0x0112
	tagStripByteCounts = 0x0117
)

// TIFF field types that can carry the tags above.
const (
	typeShort = 3
	typeLong  = 4
)

// CR2Preview is the full-size JPEG a Canon raw file carries in IFD0.
type CR2Preview struct {
	// JPEG holds the encoded preview, a sub-slice of the raw file.
	JPEG []byte
	// Orientation is the EXIF orientation of IFD0, 1 when absent.
	Orientation int
}

// ExtractCR2Preview locates the JPEG referenced by StripOffsets/StripByteCounts
// of the first IFD. CR2 is a TIFF container; the sensor data in IFD3 is not read.
//
// Arguments:
//   - data: The complete raw file.
//
// Returns:
//   - CR2Preview: The preview and its orientation.
//   - error: An error if the container is malformed or holds no JPEG preview.
func ExtractCR2Preview(data []byte) (CR2Preview, error) {
	if len(data) < 8 {
		return CR2Preview{}, errors.New("cr2: file too short")
	}

	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return CR2Preview{}, errors.New("cr2: not a tiff container")
	}
	if bo.Uint16(data[2:4]) != 42 {
		return CR2Preview{}, errors.New("cr2: bad tiff magic")
	}

	ifd := int(bo.Uint32(data[4:8]))
	if ifd < 8 || ifd+2 > len(data) {
		return CR2Preview{}, errors.Errorf("cr2: ifd0 offset %d out of range", ifd)
	}
	count := int(bo.Uint16(data[ifd : ifd+2]))
	if ifd+2+count*12 > len(data) {
		return CR2Preview{}, errors.New("cr2: truncated ifd0")
	}

	preview := CR2Preview{Orientation: 1}
	offset, length := -1, -1
	for i := 0; i < count; i++ {
		entry := data[ifd+2+i*12 : ifd+2+(i+1)*12]
		tag := bo.Uint16(entry[0:2])
		value, ok := scalarValue(bo, entry)
		if !ok {
			continue
		}
		switch tag {
		case tagStripOffsets:
			offset = value
		case tagStripByteCounts:
			length = value
		case tagOrientation:
			preview.Orientation = value
		}
	}

	if offset < 0 || length <= 0 {
		return CR2Preview{}, errors.New("cr2: ifd0 has no preview strip")
	}
	if offset+length > len(data) || offset+length < offset {
		return CR2Preview{}, errors.Errorf("cr2: preview [%d,+%d) beyond end of file", offset, length)
	}
	jpeg := data[offset : offset+length]
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		return CR2Preview{}, errors.New("cr2: preview is not a jpeg")
	}
	preview.JPEG = jpeg
	return preview, nil
}

// scalarValue reads a single SHORT or LONG stored inline in an IFD entry.
func scalarValue(bo binary.ByteOrder, entry []byte) (int, bool) {
	if bo.Uint32(entry[4:8]) != 1 {
		return 0, false
	}
	switch bo.Uint16(entry[2:4]) {
	case typeShort:
		return int(bo.Uint16(entry[8:10])), true
	case typeLong:
		return int(bo.Uint32(entry[8:12])), true
	}
	return 0, false
}
