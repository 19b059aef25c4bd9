package mp4

import (
	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/media/codec/h264parser"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// Video tracks are matched on the vide handler and an AVC sample entry.
var avcSampleEntries = []string{"avc1", "avc3"}

// ExtractAVCTrack resolves the samples of the first AVC video track of an
// MP4 file held in data. Sample bytes borrow from data.
func ExtractAVCTrack(data []byte) ([]Sample, error) {
	moov := FindBox(data, "moov")
	if moov == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	var samples []Sample
	var trakErr error
	found, err := forEachTrak(moov, func(trak []byte) bool {
		mdia := FindBox(trak, "mdia")
		if mdia == nil {
			return false
		}
		if handlerType(FindBox(mdia, "hdlr")) != "vide" {
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
		if stsd == nil || !stsdContains(stsd, avcSampleEntries...) {
			return false
		}
		samples, trakErr = resolveTrackSamples(data, stbl)
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: no AVC video track")
	}
	return samples, trakErr
}

// resolveTrackSamples runs the sample table resolver of one track against
// the mdat payload of the file.
func resolveTrackSamples(data []byte, stbl []byte) ([]Sample, error) {
	t, err := readSampleTable(stbl, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	_, mdatStart, mdatEnd, ok := FindBoxRange(data, "mdat")
	if !ok {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: mdat")
	}
	return collectSamples(data, mdatStart, mdatEnd, t), nil
}

// GetVideoTimescale returns the mdhd timescale of the first video track.
func GetVideoTimescale(data []byte) (uint32, error) {
	moov := FindBox(data, "moov")
	if moov == nil {
		return 0, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	var timescale uint32
	var tsErr error
	found, err := forEachTrak(moov, func(trak []byte) bool {
		mdia := FindBox(trak, "mdia")
		if mdia == nil {
			return false
		}
		if handlerType(FindBox(mdia, "hdlr")) != "vide" {
			return false
		}
		mdhd := FindBox(mdia, "mdhd")
		if mdhd == nil {
			return false
		}
		timescale, tsErr = parseMdhdTimescale(mdhd)
		return tsErr == nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errs.Wrapf(errs.ErrNotFound, "mp4: no video timescale")
	}
	return timescale, nil
}

// ExtractDecoderConfig returns the AVCDecoderConfigurationRecord from the
// avcC box of the first AVC video track. The sample entry carries a fixed
// 78-byte header before its child boxes.
func ExtractDecoderConfig(data []byte) (*h264parser.AVCDecoderConfRecord, error) {
	moov := FindBox(data, "moov")
	if moov == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: moov")
	}
	var rec *h264parser.AVCDecoderConfRecord
	var recErr error
	found, err := forEachTrak(moov, func(trak []byte) bool {
		mdia := FindBox(trak, "mdia")
		if mdia == nil {
			return false
		}
		if handlerType(FindBox(mdia, "hdlr")) != "vide" {
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
		avcC := findAvcCInStsd(stsd)
		if avcC == nil {
			return false
		}
		r := &h264parser.AVCDecoderConfRecord{}
		if _, err := r.Unmarshal(avcC); err != nil {
			recErr = err
			return true
		}
		rec = r
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: no avcC")
	}
	return rec, recErr
}

// findAvcCInStsd walks the stsd payload to the avc1/avc3 sample entry and
// returns its avcC child payload.
func findAvcCInStsd(stsd []byte) []byte {
	if len(stsd) < 16 {
		return nil
	}
	p := 8 // version + flags + entry count
	if p+8 > len(stsd) {
		return nil
	}
	entrySize := int(pio.U32BE(stsd[p:]))
	format := string(stsd[p+4 : p+8])
	if entrySize < 8 || p+entrySize > len(stsd) {
		return nil
	}
	if format != "avc1" && format != "avc3" {
		return nil
	}
	entry := stsd[p : p+entrySize]
	// skip the fixed VisualSampleEntry fields
	q := 8 + 78
	for q+8 <= len(entry) {
		start := q
		name, size, err := ParseBoxHeader(entry, &q)
		if err != nil || size > uint64(len(entry)-start) {
			return nil
		}
		end := start + int(size)
		if name == "avcC" {
			return entry[q:end]
		}
		q = end
	}
	return nil
}

// ReadVideoCodecString returns the RFC 6381 codecs parameter of the first
// AVC video track, built from the sample entry name and the first SPS of
// the decoder configuration.
func ReadVideoCodecString(data []byte) (string, error) {
	rec, err := ExtractDecoderConfig(data)
	if err != nil {
		return "", err
	}
	if len(rec.SPS) == 0 {
		return "", errs.Wrapf(errs.ErrMalformed, "mp4: avcC without SPS")
	}
	sps, err := h264parser.ParseSPS(rec.SPS[0], false)
	if err != nil {
		return "", err
	}
	entry, err := videoSampleEntryName(data)
	if err != nil {
		return "", err
	}
	return h264parser.CodecString(entry, sps), nil
}

func videoSampleEntryName(data []byte) (string, error) {
	info, err := readVideoInfoFromBytes(data)
	if err != nil {
		return "", err
	}
	return info.Codec, nil
}
