package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// subtitleEntry builds a minimal sample entry with the given format.
func subtitleEntry(format string) []byte {
	out := make([]byte, 16)
	pio.PutU32BE(out, 16)
	copy(out[4:8], format)
	return out
}

// buildSubtitleFile assembles ftyp + mdat + moov with one subtitle track.
func buildSubtitleFile(t *testing.T, handler, codec string, samples [][]byte) []byte {
	t.Helper()
	ftyp := box("ftyp", []byte("isom"))
	mdat := box("mdat", concat(samples...))
	mdatStart := len(ftyp) + 8

	sizes := make([]uint32, len(samples))
	for i, s := range samples {
		sizes[i] = uint32(len(s))
	}
	var sttsEntries [][2]uint32
	for range samples {
		sttsEntries = append(sttsEntries, [2]uint32{1, 1000})
	}

	trak := box("trak",
		box("tkhd", tkhdPayload(0, 0)),
		box("mdia",
			box("mdhd", mdhdPayload(1000, uint32(len(samples))*1000)),
			box("hdlr", hdlrPayload(handler)),
			box("minf",
				box("stbl",
					box("stsd", stsdPayload(subtitleEntry(codec))),
					box("stts", sttsPayload(sttsEntries...)),
					box("stsc", stscPayload([3]uint32{1, uint32(len(samples)), 1})),
					box("stsz", stszPayload(sizes)),
					box("stco", stcoPayload(uint32(mdatStart))),
				),
			),
		),
	)
	moov := box("moov", box("mvhd", mvhdPayload(1000, uint32(len(samples))*1000)), trak)
	return concat(ftyp, mdat, moov)
}

func TestFindWvttTrack(t *testing.T) {
	samples := [][]byte{
		box("payl", []byte("Hello there")),
		box("payl", []byte("General Kenobi")),
	}
	data := buildSubtitleFile(t, "text", "wvtt", samples)

	track, err := FindWvttTrack(data)
	require.NoError(t, err)
	require.Equal(t, SubtitleWvtt, track.Variant)
	require.Equal(t, uint32(1000), track.Timescale)
	require.Len(t, track.Samples, 2)

	require.Equal(t, uint64(0), track.Samples[0].Start)
	require.Equal(t, uint32(1000), track.Samples[0].Dur)
	require.Equal(t, uint64(1000), track.Samples[1].Start)

	text, ok := ExtractText(track.Variant, track.Samples[0].Bytes)
	require.True(t, ok)
	require.Equal(t, "Hello there", text)
	text, ok = ExtractText(track.Variant, track.Samples[1].Bytes)
	require.True(t, ok)
	require.Equal(t, "General Kenobi", text)
}

func TestFindWvttTrackSubtHandler(t *testing.T) {
	samples := [][]byte{box("payl", []byte("cue"))}
	data := buildSubtitleFile(t, "subt", "wvtt", samples)
	_, err := FindWvttTrack(data)
	require.NoError(t, err)
}

func TestFindStppTrack(t *testing.T) {
	doc := []byte("<tt xmlns=\"http://www.w3.org/ns/ttml\"><body/></tt>")
	data := buildSubtitleFile(t, "subt", "stpp", [][]byte{doc})

	track, err := FindStppTrack(data)
	require.NoError(t, err)
	require.Len(t, track.Samples, 1)
	text, ok := ExtractText(track.Variant, track.Samples[0].Bytes)
	require.True(t, ok)
	require.Equal(t, string(doc), text)

	// stpp tracks require the subt handler
	data = buildSubtitleFile(t, "text", "stpp", [][]byte{doc})
	_, err = FindStppTrack(data)
	require.Error(t, err)
}

func TestFindTx3gTrack(t *testing.T) {
	sample := concat(be16(5), []byte("HelloXXX")) // trailing style records
	data := buildSubtitleFile(t, "sbtl", "tx3g", [][]byte{sample})

	track, err := FindTx3gTrack(data)
	require.NoError(t, err)
	require.Len(t, track.Samples, 1)
	text, ok := ExtractText(track.Variant, track.Samples[0].Bytes)
	require.True(t, ok)
	require.Equal(t, "Hello", text)
}

func TestTx3gTextLengthClamped(t *testing.T) {
	// declared length exceeds the sample; the text is clamped
	sample := concat(be16(100), []byte("Hi"))
	text, ok := ExtractText(SubtitleTx3g, sample)
	require.True(t, ok)
	require.Equal(t, "Hi", text)

	_, ok = ExtractText(SubtitleTx3g, []byte{0x00})
	require.False(t, ok)
}

func TestFindSubtitleTrackNotFound(t *testing.T) {
	f := buildAVCFile(t)
	_, err := FindWvttTrack(f.data)
	require.Error(t, err)
	require.Equal(t, int32(errs.CodeNotFound), errs.Code(errs.Cause(err)))
}

func TestFindSubtitleTrackUnknownVariant(t *testing.T) {
	f := buildAVCFile(t)
	_, err := FindSubtitleTrack(f.data, SubtitleVariant("srt"))
	require.Error(t, err)
	require.Equal(t, int32(errs.CodeUnsupported), errs.Code(errs.Cause(err)))
}

func TestWvttTextMissingPayl(t *testing.T) {
	_, ok := ExtractText(SubtitleWvtt, box("vtte"))
	require.False(t, ok)
}
