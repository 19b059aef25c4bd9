package mp4

import (
	"os"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// VideoInfo is the codec and display size of a video track. Width and
// height come from the 16.16 fixed-point values of the track header.
type VideoInfo struct {
	Codec  string `json:"codec"`
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

// ReadVideoInfo reads the file at path and returns the first video
// track's codec and size, or a not-found error when the file has no video
// track.
func ReadVideoInfo(path string) (*VideoInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "mp4: read %s", path)
	}
	return readVideoInfoFromBytes(data)
}

func readVideoInfoFromBytes(data []byte) (*VideoInfo, error) {
	moov := FindBox(data, "moov")
	if moov == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	var info *VideoInfo
	found, err := forEachTrak(moov, func(trak []byte) bool {
		mdia := FindBox(trak, "mdia")
		if mdia == nil {
			return false
		}
		if handlerType(FindBox(mdia, "hdlr")) != "vide" {
			return false
		}
		tkhd := FindBox(trak, "tkhd")
		if tkhd == nil {
			return false
		}
		width, height, ok := parseTkhdSize(tkhd)
		if !ok {
			return false
		}
		minf := FindBox(mdia, "minf")
		if minf == nil {
			return false
		}
		stbl := FindBox(minf, "stbl")
		if stbl == nil {
			return false
		}
		stsd := FindBox(stbl, "stsd")
		if stsd == nil {
			return false
		}
		codec, ok := parseStsdCodec(stsd)
		if !ok {
			return false
		}
		info = &VideoInfo{Codec: codec, Width: width, Height: height}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: no video track")
	}
	return info, nil
}

// parseTkhdSize returns the 16.16 fixed-point width and height at the end
// of a tkhd payload, for both version layouts.
func parseTkhdSize(tkhd []byte) (width, height uint16, ok bool) {
	if len(tkhd) < 84 {
		return 0, 0, false
	}
	pos := 76
	if tkhd[0] == 1 {
		pos = 88
	}
	if len(tkhd) < pos+8 {
		return 0, 0, false
	}
	width = uint16(pio.U32BE(tkhd[pos:]) >> 16)
	height = uint16(pio.U32BE(tkhd[pos+4:]) >> 16)
	return width, height, true
}

// parseStsdCodec returns the four-cc of the first sample entry in an stsd
// payload.
func parseStsdCodec(stsd []byte) (string, bool) {
	if len(stsd) < 16 {
		return "", false
	}
	p := 8 // version + flags + entry count
	if p+8 > len(stsd) {
		return "", false
	}
	return string(stsd[p+4 : p+8]), true
}
