package mp4

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func dataBox(text string) []byte {
	return box("data", be32(1), be32(0), []byte(text))
}

func buildMetadataFile(metaPayload []byte) []byte {
	moov := box("moov",
		box("mvhd", mvhdPayload(1000, 8000)),
		box("udta",
			box("meta", metaPayload),
		),
	)
	return concat(box("ftyp", []byte("isom")), moov)
}

func ilstPayload() []byte {
	return concat(
		box("\xa9nam", dataBox("A Title")),
		box("\xa9ART", dataBox("An Artist")),
		box("\xa9alb", dataBox("An Album")),
		box("cprt", dataBox("© 2024")),
	)
}

func TestReadMetadataFromBytes(t *testing.T) {
	// meta with a version/flags word before hdlr
	metaPayload := concat(
		be32(0),
		box("hdlr", hdlrPayload("mdir")),
		box("ilst", ilstPayload()),
	)
	md, err := ReadMetadataFromBytes(buildMetadataFile(metaPayload))
	require.NoError(t, err)
	require.Equal(t, "A Title", md.Title)
	require.Equal(t, "An Artist", md.Artist)
	require.Equal(t, "An Album", md.Album)
	require.Equal(t, "© 2024", md.Copyright)
	require.True(t, md.HasDuration)
	require.Equal(t, 8.0, md.DurationSeconds)
}

func TestReadMetadataMetaWithoutVersionFlags(t *testing.T) {
	// some files start the meta payload directly with hdlr
	metaPayload := concat(
		box("hdlr", hdlrPayload("mdir")),
		box("ilst", ilstPayload()),
	)
	md, err := ReadMetadataFromBytes(buildMetadataFile(metaPayload))
	require.NoError(t, err)
	require.Equal(t, "A Title", md.Title)
	require.Equal(t, "An Artist", md.Artist)
}

func TestReadMetadataNoTags(t *testing.T) {
	data := concat(
		box("ftyp", []byte("isom")),
		box("moov", box("mvhd", mvhdPayload(600, 1500))),
	)
	md, err := ReadMetadataFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, "", md.Title)
	require.True(t, md.HasDuration)
	require.Equal(t, 2.5, md.DurationSeconds)
	require.Equal(t, uint64(len(data)), md.Size)
}

func TestReadMetadataNoMoov(t *testing.T) {
	_, err := ReadMetadataFromBytes(box("ftyp", []byte("isom")))
	require.Error(t, err)
}

func TestReadMetadataMvhdV1(t *testing.T) {
	v1 := concat([]byte{1, 0, 0, 0}, make([]byte, 16), be32(90000), be64(450000), make([]byte, 80))
	data := concat(
		box("ftyp", []byte("isom")),
		box("moov", box("mvhd", v1)),
	)
	md, err := ReadMetadataFromBytes(data)
	require.NoError(t, err)
	require.True(t, md.HasDuration)
	require.Equal(t, 5.0, md.DurationSeconds)
}

func TestReadMetadataFromFile(t *testing.T) {
	metaPayload := concat(
		be32(0),
		box("hdlr", hdlrPayload("mdir")),
		box("ilst", ilstPayload()),
	)
	data := buildMetadataFile(metaPayload)
	path := filepath.Join(t.TempDir(), "test.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	md, err := ReadMetadata(path)
	require.NoError(t, err)
	require.Equal(t, "A Title", md.Title)
	require.Equal(t, uint64(len(data)), md.Size)

	_, err = ReadMetadata(filepath.Join(t.TempDir(), "missing.mp4"))
	require.Error(t, err)
}
