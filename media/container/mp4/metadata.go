package mp4

import (
	"os"

	"github.com/polw1/mp4ff/common/errs"
)

// Metadata is the basic movie-level information of an MP4 file.
type Metadata struct {
	Title           string  `json:"title,omitempty"`
	Artist          string  `json:"artist,omitempty"`
	Album           string  `json:"album,omitempty"`
	Copyright       string  `json:"copyright,omitempty"`
	DurationSeconds float64 `json:"duration_s,omitempty"`
	HasDuration     bool    `json:"-"`
	Size            uint64  `json:"size_bytes"`
}

// ReadMetadata reads the moov box of the file at path and returns the
// mvhd duration and the udta/meta/ilst tags.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "mp4: read %s", path)
	}
	md, err := ReadMetadataFromBytes(data)
	if err != nil {
		return nil, err
	}
	md.Size = uint64(len(data))
	return md, nil
}

// ReadMetadataFromBytes is ReadMetadata on an in-memory file.
func ReadMetadataFromBytes(data []byte) (*Metadata, error) {
	md := &Metadata{Size: uint64(len(data))}
	moov := FindBox(data, "moov")
	if moov == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	pos := 0
	for pos+8 <= len(moov) {
		start := pos
		name, size, err := ParseBoxHeader(moov, &pos)
		if err != nil {
			return nil, err
		}
		if size > uint64(len(moov)-start) {
			return nil, errs.Wrapf(errs.ErrMalformed, "mp4: box %q exceeds moov", name)
		}
		end := start + int(size)
		payload := moov[pos:end]
		switch name {
		case "mvhd":
			timescale, duration, err := parseMvhd(payload)
			if err != nil {
				return nil, err
			}
			if timescale != 0 {
				md.DurationSeconds = float64(duration) / float64(timescale)
				md.HasDuration = true
			}
		case "udta":
			parseUdta(payload, md)
		}
		pos = end
	}
	return md, nil
}

func parseUdta(data []byte, md *Metadata) {
	pos := 0
	for pos+8 <= len(data) {
		start := pos
		name, size, err := ParseBoxHeader(data, &pos)
		if err != nil || size > uint64(len(data)-start) {
			return
		}
		end := start + int(size)
		if name == "meta" {
			payload := data[pos:end]
			// meta may carry a version/flags word before hdlr; peek for it
			if len(payload) >= 8 && string(payload[4:8]) != "hdlr" {
				payload = payload[4:]
			}
			parseMeta(payload, md)
		}
		pos = end
	}
}

func parseMeta(data []byte, md *Metadata) {
	pos := 0
	for pos+8 <= len(data) {
		start := pos
		name, size, err := ParseBoxHeader(data, &pos)
		if err != nil || size > uint64(len(data)-start) {
			return
		}
		end := start + int(size)
		if name == "ilst" {
			parseIlst(data[pos:end], md)
		}
		pos = end
	}
}

func parseIlst(data []byte, md *Metadata) {
	pos := 0
	for pos+8 <= len(data) {
		start := pos
		name, size, err := ParseBoxHeader(data, &pos)
		if err != nil || size > uint64(len(data)-start) {
			return
		}
		end := start + int(size)
		var dest *string
		switch name {
		case "\xa9nam":
			dest = &md.Title
		case "\xa9ART":
			dest = &md.Artist
		case "\xa9alb":
			dest = &md.Album
		case "cprt":
			dest = &md.Copyright
		}
		if dest != nil {
			if text, ok := parseDataBox(data[pos:end]); ok {
				*dest = text
			}
		}
		pos = end
	}
}

// parseDataBox extracts the UTF-8 text of the data child box, after its
// 8-byte type and locale indicator.
func parseDataBox(data []byte) (string, bool) {
	pos := 0
	for pos+8 <= len(data) {
		start := pos
		name, size, err := ParseBoxHeader(data, &pos)
		if err != nil || size > uint64(len(data)-start) {
			return "", false
		}
		end := start + int(size)
		if name == "data" {
			if pos+8 > end {
				return "", false
			}
			return string(data[pos+8 : end]), true
		}
		pos = end
	}
	return "", false
}
