package mp4

import (
	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// forEachTrak calls fn with the payload of every trak box under moov until
// fn returns true. It reports whether fn accepted a track.
func forEachTrak(moov []byte, fn func(trak []byte) bool) (bool, error) {
	pos := 0
	for pos+8 <= len(moov) {
		start := pos
		name, size, err := ParseBoxHeader(moov, &pos)
		if err != nil {
			return false, err
		}
		if size > uint64(len(moov)-start) {
			return false, errs.Wrapf(errs.ErrMalformed, "mp4: trak size %d exceeds moov", size)
		}
		end := start + int(size)
		if name == "trak" {
			if fn(moov[pos:end]) {
				return true, nil
			}
		}
		pos = end
	}
	return false, nil
}

// parseMdhdTimescale returns the timescale of an mdhd payload, handling
// both the version 0 and version 1 layouts.
func parseMdhdTimescale(mdhd []byte) (uint32, error) {
	if len(mdhd) < 12 {
		return 0, errs.Wrapf(errs.ErrTruncated, "mp4: mdhd")
	}
	p := 4 // version + flags
	if mdhd[0] == 1 {
		p += 8 + 8
	} else {
		p += 4 + 4
	}
	if p+4 > len(mdhd) {
		return 0, errs.Wrapf(errs.ErrTruncated, "mp4: mdhd")
	}
	return pio.U32BE(mdhd[p:]), nil
}

// parseMvhd returns timescale and duration from an mvhd payload. Version 1
// uses 64-bit times, version 0 uses 32-bit.
func parseMvhd(mvhd []byte) (timescale uint32, duration uint64, err error) {
	if len(mvhd) < 4 {
		return 0, 0, errs.Wrapf(errs.ErrTruncated, "mp4: mvhd")
	}
	p := 4 // version + flags
	if mvhd[0] == 1 {
		if p+8+8+4+8 > len(mvhd) {
			return 0, 0, errs.Wrapf(errs.ErrTruncated, "mp4: mvhd v1")
		}
		p += 16 // creation and modification time
		timescale = pio.U32BE(mvhd[p:])
		duration = pio.U64BE(mvhd[p+4:])
	} else {
		if p+4+4+4+4 > len(mvhd) {
			return 0, 0, errs.Wrapf(errs.ErrTruncated, "mp4: mvhd v0")
		}
		p += 8 // creation and modification time
		timescale = pio.U32BE(mvhd[p:])
		duration = uint64(pio.U32BE(mvhd[p+4:]))
	}
	return timescale, duration, nil
}

// parseSttsEntries expands the stts payload into its (count, delta) pairs.
func parseSttsEntries(stts []byte) ([][2]uint32, error) {
	if len(stts) < 8 {
		return nil, errs.Wrapf(errs.ErrTruncated, "mp4: stts")
	}
	p := 4 // version + flags
	entryCount := int(pio.U32BE(stts[p:]))
	p += 4
	if uint64(entryCount)*8 > uint64(len(stts)-p) {
		return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stts entry count %d", entryCount)
	}
	entries := make([][2]uint32, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		entries = append(entries, [2]uint32{pio.U32BE(stts[p:]), pio.U32BE(stts[p+4:])})
		p += 8
	}
	return entries, nil
}

// handlerType returns the handler four-cc at bytes 8..12 of an hdlr
// payload.
func handlerType(hdlr []byte) string {
	if len(hdlr) < 12 {
		return ""
	}
	return string(hdlr[8:12])
}

// stsdContains reports whether the stsd payload mentions any of the given
// sample entry four-ccs.
func stsdContains(stsd []byte, codecs ...string) bool {
	for _, codec := range codecs {
		for i := 0; i+4 <= len(stsd); i++ {
			if string(stsd[i:i+4]) == codec {
				return true
			}
		}
	}
	return false
}
