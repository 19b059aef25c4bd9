// Package mp4 reads ISO base media file format containers: box walking,
// sample tables, track selection, metadata and subtitle extraction.
// Fragmented files (moof/traf) are not handled.
package mp4

import (
	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// ParseBoxHeader reads the box header at *pos and advances *pos past it.
// It returns the four-character type and the total box size including the
// header. A 32-bit size of 1 means a 64-bit size follows the type, and a
// size of 0 extends the box to the end of its container.
func ParseBoxHeader(data []byte, pos *int) (name string, size uint64, err error) {
	start := *pos
	if start+8 > len(data) {
		return "", 0, errs.Wrapf(errs.ErrTruncated, "mp4: box header at %d", start)
	}
	size32 := pio.U32BE(data[start:])
	name = string(data[start+4 : start+8])
	*pos = start + 8
	size = uint64(size32)
	headerSize := uint64(8)
	if size32 == 1 {
		if start+16 > len(data) {
			return "", 0, errs.Wrapf(errs.ErrTruncated, "mp4: largesize of %q at %d", name, start)
		}
		size = pio.U64BE(data[start+8:])
		*pos = start + 16
		headerSize = 16
	}
	if size == 0 {
		size = uint64(len(data) - start)
	}
	if size < headerSize {
		return "", 0, errs.Wrapf(errs.ErrMalformed, "mp4: box %q with size %d", name, size)
	}
	return name, size, nil
}

// FindBox scans the boxes at the top level of data and returns the payload
// of the first box with the given type, or nil when absent or when a
// declared size exceeds the container.
func FindBox(data []byte, name string) []byte {
	_, start, end, ok := FindBoxRange(data, name)
	if !ok {
		return nil
	}
	return data[start:end]
}

// FindBoxRange is FindBox returning indices into data instead: the box
// start, the payload start and the payload end. Callers that need absolute
// file offsets, notably for the mdat payload, use this form.
func FindBoxRange(data []byte, name string) (outerStart, payloadStart, payloadEnd int, ok bool) {
	pos := 0
	for pos+8 <= len(data) {
		start := pos
		boxName, size, err := ParseBoxHeader(data, &pos)
		if err != nil {
			return 0, 0, 0, false
		}
		if size > uint64(len(data)-start) {
			return 0, 0, 0, false
		}
		end := start + int(size)
		if boxName == name {
			return start, pos, end, true
		}
		pos = end
	}
	return 0, 0, 0, false
}
