package h264parser

import (
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// extractNALUsFromByteStream locates start codes (3- or 4-byte) and returns
// the byte ranges between them. Trailing zero bytes before the next start
// code belong to that start code and are stripped from each NAL unit. The
// returned slices borrow from data.
func extractNALUsFromByteStream(data []byte) [][]byte {
	var nalus [][]byte
	currStart := -1
	appendNalu := func(start, end int) {
		for end > start && data[end-1] == 0 {
			end--
		}
		nalus = append(nalus, data[start:end])
	}
	pos := 0
	for pos+3 <= len(data) {
		if pos+4 <= len(data) && data[pos] == 0 && data[pos+1] == 0 && data[pos+2] == 0 && data[pos+3] == 1 {
			if currStart >= 0 {
				appendNalu(currStart, pos)
			}
			currStart = pos + 4
			pos += 4
			continue
		}
		if data[pos] == 0 && data[pos+1] == 0 && data[pos+2] == 1 {
			if currStart >= 0 {
				appendNalu(currStart, pos)
			}
			currStart = pos + 3
			pos += 3
			continue
		}
		pos++
	}
	if currStart >= 0 {
		appendNalu(currStart, len(data))
	}
	return nalus
}

// ExtractNALUsFromByteStream returns all NAL units of an Annex B byte
// stream without their start codes.
func ExtractNALUsFromByteStream(data []byte) [][]byte {
	return extractNALUsFromByteStream(data)
}

// ConvertByteStreamToNALUSample converts an Annex B byte stream into a
// sample where every NAL unit is prefixed by its 4-byte big-endian length.
func ConvertByteStreamToNALUSample(stream []byte) []byte {
	nalus := extractNALUsFromByteStream(stream)
	out := make([]byte, 0, len(stream))
	var lenBuf [4]byte
	for _, nalu := range nalus {
		pio.PutU32BE(lenBuf[:], uint32(len(nalu)))
		out = append(out, lenBuf[:]...)
		out = append(out, nalu...)
	}
	return out
}

// ConvertSampleToByteStream replaces the 4-byte lengths of a sample with
// 4-byte start codes. A truncated length field ends the conversion without
// an error since the sample may have been cut short upstream.
func ConvertSampleToByteStream(sample []byte) []byte {
	out := make([]byte, 0, len(sample)+len(sample)/16)
	pos := 0
	for pos+4 <= len(sample) {
		length := int(pio.U32BE(sample[pos:]))
		pos += 4
		if length < 0 || pos+length > len(sample) {
			break
		}
		out = append(out, 0, 0, 0, 1)
		out = append(out, sample[pos:pos+length]...)
		pos += length
	}
	return out
}

// GetFirstVideoNALUFromByteStream returns the first VCL NAL unit of an
// Annex B byte stream, or nil when there is none.
func GetFirstVideoNALUFromByteStream(stream []byte) []byte {
	for _, nalu := range extractNALUsFromByteStream(stream) {
		if len(nalu) > 0 && GetNaluType(nalu[0]).IsVideo() {
			return nalu
		}
	}
	return nil
}

// ExtractNALUsOfTypeFromByteStream returns all NAL units of the wanted
// type. When stopAtVideo is set, scanning ends at the first VCL NAL unit.
func ExtractNALUsOfTypeFromByteStream(nType NaluType, data []byte, stopAtVideo bool) [][]byte {
	var res [][]byte
	for _, nalu := range extractNALUsFromByteStream(data) {
		if len(nalu) == 0 {
			continue
		}
		nt := GetNaluType(nalu[0])
		if nt == nType {
			res = append(res, nalu)
		}
		if stopAtVideo && nt.IsVideo() {
			break
		}
	}
	return res
}

// GetParameterSetsFromByteStream returns the SPS and PPS NAL units found
// before the first VCL NAL unit of an Annex B byte stream.
func GetParameterSetsFromByteStream(data []byte) (sps [][]byte, pps [][]byte) {
	for _, nalu := range extractNALUsFromByteStream(data) {
		if len(nalu) == 0 {
			continue
		}
		nt := GetNaluType(nalu[0])
		switch {
		case nt == NALU_SPS:
			sps = append(sps, nalu)
		case nt == NALU_PPS:
			pps = append(pps, nalu)
		case nt.IsVideo():
			return sps, pps
		}
	}
	return sps, pps
}
