package mp4

import (
	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// SubtitleVariant names a supported subtitle sample format.
type SubtitleVariant string

const (
	// SubtitleWvtt is WebVTT in ISOBMFF.
	SubtitleWvtt SubtitleVariant = "wvtt"
	// SubtitleStpp is TTML.
	SubtitleStpp SubtitleVariant = "stpp"
	// SubtitleTx3g is 3GPP timed text.
	SubtitleTx3g SubtitleVariant = "tx3g"
)

// subtitleMatch maps a variant to the handlers and sample entry that
// identify its tracks.
var subtitleMatch = map[SubtitleVariant]struct {
	handlers []string
	codec    string
}{
	SubtitleWvtt: {handlers: []string{"text", "subt"}, codec: "wvtt"},
	SubtitleStpp: {handlers: []string{"subt"}, codec: "stpp"},
	SubtitleTx3g: {handlers: []string{"sbtl", "text", "subt"}, codec: "tx3g"},
}

// SubtitleTrack is a subtitle track with all its resolved samples.
type SubtitleTrack struct {
	Variant SubtitleVariant
	// Timescale from the track mdhd box.
	Timescale uint32
	Samples   []Sample
}

// FindWvttTrack returns the first WebVTT subtitle track.
func FindWvttTrack(data []byte) (*SubtitleTrack, error) {
	return FindSubtitleTrack(data, SubtitleWvtt)
}

// FindStppTrack returns the first TTML subtitle track.
func FindStppTrack(data []byte) (*SubtitleTrack, error) {
	return FindSubtitleTrack(data, SubtitleStpp)
}

// FindTx3gTrack returns the first 3GPP timed text track.
func FindTx3gTrack(data []byte) (*SubtitleTrack, error) {
	return FindSubtitleTrack(data, SubtitleTx3g)
}

// FindSubtitleTrack returns the first track matching the variant's
// handler and sample entry tables, with its samples resolved.
func FindSubtitleTrack(data []byte, variant SubtitleVariant) (*SubtitleTrack, error) {
	match, ok := subtitleMatch[variant]
	if !ok {
		return nil, errs.Wrapf(errs.ErrUnsupported, "mp4: subtitle variant %q", variant)
	}
	moov := FindBox(data, "moov")
	if moov == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	var track *SubtitleTrack
	var trakErr error
	found, err := forEachTrak(moov, func(trak []byte) bool {
		mdia := FindBox(trak, "mdia")
		if mdia == nil {
			return false
		}
		handler := handlerType(FindBox(mdia, "hdlr"))
		handlerOK := false
		for _, h := range match.handlers {
			if handler == h {
				handlerOK = true
				break
			}
		}
		if !handlerOK {
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
		if stsd == nil || !stsdContains(stsd, match.codec) {
			return false
		}
		mdhd := FindBox(mdia, "mdhd")
		if mdhd == nil {
			return false
		}
		timescale, err := parseMdhdTimescale(mdhd)
		if err != nil {
			trakErr = err
			return true
		}
		samples, err := resolveTrackSamples(data, stbl)
		if err != nil {
			trakErr = err
			return true
		}
		track = &SubtitleTrack{Variant: variant, Timescale: timescale, Samples: samples}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: no %s track", variant)
	}
	return track, trakErr
}

// ExtractText decodes the textual content of one subtitle sample.
// wvtt samples carry the text in a payl child box, stpp samples are whole
// TTML documents, and tx3g samples start with a 16-bit text length.
func ExtractText(variant SubtitleVariant, sample []byte) (string, bool) {
	switch variant {
	case SubtitleWvtt:
		return extractWvttText(sample)
	case SubtitleStpp:
		return string(sample), true
	case SubtitleTx3g:
		return extractTx3gText(sample)
	}
	return "", false
}

func extractWvttText(sample []byte) (string, bool) {
	pos := 0
	for pos+8 <= len(sample) {
		start := pos
		name, size, err := ParseBoxHeader(sample, &pos)
		if err != nil || size > uint64(len(sample)-start) {
			break
		}
		end := start + int(size)
		if name == "payl" {
			return string(sample[pos:end]), true
		}
		pos = end
	}
	return "", false
}

func extractTx3gText(sample []byte) (string, bool) {
	if len(sample) < 2 {
		return "", false
	}
	length := int(pio.U16BE(sample))
	if length > len(sample)-2 {
		length = len(sample) - 2
	}
	return string(sample[2 : 2+length]), true
}
