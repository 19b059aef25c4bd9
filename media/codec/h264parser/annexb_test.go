package h264parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertSampleToByteStream(t *testing.T) {
	sample := []byte{
		0x00, 0x00, 0x00, 0x02, 0x09, 0x10,
		0x00, 0x00, 0x00, 0x03, 0x67, 0x42, 0x80,
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09, 0x10,
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x80,
	}
	require.Equal(t, want, ConvertSampleToByteStream(sample))
}

func TestConvertSampleToByteStreamTruncated(t *testing.T) {
	// a truncated length field ends the conversion without an error
	sample := []byte{
		0x00, 0x00, 0x00, 0x02, 0x09, 0x10,
		0x00, 0x00, 0x00, 0xff, 0x67,
	}
	want := []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0x10}
	require.Equal(t, want, ConvertSampleToByteStream(sample))
}

func TestByteStreamSampleRoundTrip(t *testing.T) {
	samples := [][]byte{
		{0x00, 0x00, 0x00, 0x02, 0x09, 0x10},
		{
			0x00, 0x00, 0x00, 0x02, 0x09, 0x10,
			0x00, 0x00, 0x00, 0x03, 0x67, 0x42, 0x80,
			0x00, 0x00, 0x00, 0x04, 0x68, 0xe8, 0x43, 0x32,
			0x00, 0x00, 0x00, 0x05, 0x65, 0x88, 0x80, 0x40, 0x01,
		},
	}
	for _, sample := range samples {
		require.Equal(t, sample, ConvertByteStreamToNALUSample(ConvertSampleToByteStream(sample)))
	}
}

func TestExtractNALUsStripsTrailingZeros(t *testing.T) {
	// the zero before the second start code belongs to that start code
	stream := []byte{
		0x00, 0x00, 0x01, 0x09, 0x10, 0x00,
		0x00, 0x00, 0x01, 0x67, 0x42,
	}
	nalus := ExtractNALUsFromByteStream(stream)
	require.Len(t, nalus, 2)
	require.Equal(t, []byte{0x09, 0x10}, nalus[0])
	require.Equal(t, []byte{0x67, 0x42}, nalus[1])
}

func TestExtractNALUsMixedStartCodes(t *testing.T) {
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x64, 0x00,
		0x00, 0x00, 0x01, 0x68, 0xe8,
		0x00, 0x00, 0x01, 0x65, 0x88,
	}
	nalus := ExtractNALUsFromByteStream(stream)
	require.Len(t, nalus, 3)
	require.Equal(t, []byte{0x67, 0x64}, nalus[0])
	require.Equal(t, []byte{0x68, 0xe8}, nalus[1])
	require.Equal(t, []byte{0x65, 0x88}, nalus[2])
}

func TestGetFirstVideoNALUFromByteStream(t *testing.T) {
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x64,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xe8,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x80,
	}
	nalu := GetFirstVideoNALUFromByteStream(stream)
	require.NotNil(t, nalu)
	require.Equal(t, NALU_IDR, GetNaluType(nalu[0]))

	require.Nil(t, GetFirstVideoNALUFromByteStream([]byte{0x00, 0x00, 0x01, 0x67, 0x64}))
}

func TestGetParameterSetsFromByteStream(t *testing.T) {
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09, 0xf0,
		0x00, 0x00, 0x00, 0x01, 0x67, 0x64, 0x00,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xe8,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x80,
		// parameter sets after the first video NALU are ignored
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00,
	}
	sps, pps := GetParameterSetsFromByteStream(stream)
	require.Len(t, sps, 1)
	require.Len(t, pps, 1)
	require.Equal(t, []byte{0x67, 0x64}, sps[0])
	require.Equal(t, []byte{0x68, 0xe8}, pps[0])
}

func TestExtractNALUsOfTypeFromByteStream(t *testing.T) {
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x06, 0x05, 0x01, 0xaa, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x06, 0x05, 0x01, 0xbb, 0x80,
	}
	require.Len(t, ExtractNALUsOfTypeFromByteStream(NALU_SEI, stream, false), 2)
	require.Len(t, ExtractNALUsOfTypeFromByteStream(NALU_SEI, stream, true), 1)
}

func TestGetNALUsFromSample(t *testing.T) {
	sample := []byte{
		0x00, 0x00, 0x00, 0x02, 0x09, 0x10,
		0x00, 0x00, 0x00, 0x03, 0x67, 0x42, 0x80,
	}
	nalus, err := GetNALUsFromSample(sample)
	require.NoError(t, err)
	require.Len(t, nalus, 2)
	require.Equal(t, []byte{0x09, 0x10}, nalus[0])

	_, err = GetNALUsFromSample([]byte{0x00, 0x00, 0x00, 0x09, 0x09})
	require.Error(t, err)
	_, err = GetNALUsFromSample([]byte{0x00, 0x00})
	require.Error(t, err)
}

func TestDumpNaluTypes(t *testing.T) {
	sample := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09,
		0x00, 0x00, 0x00, 0x01, 0x67,
		0x00, 0x00, 0x00, 0x01, 0x68,
		0x00, 0x00, 0x00, 0x01, 0x65,
	}
	require.Equal(t, "AUD,SPS,PPS,IDR", DumpNaluTypes(sample))
	require.Equal(t, "<invalid>", DumpNaluTypes([]byte{0x00, 0x00, 0x00, 0x09, 0x09}))
}

func TestRemoveEmulationBytes(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x00, 0x04, 0x00, 0x00, 0x03, 0x00, 0xca}
	want := []byte{0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0xca}
	require.Equal(t, want, RemoveEmulationBytes(in))
}
