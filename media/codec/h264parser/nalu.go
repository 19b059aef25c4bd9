// Package h264parser decodes H.264/AVC bitstream structures: NAL units,
// parameter sets, slice headers, SEI messages and the
// AVCDecoderConfigurationRecord.
package h264parser

import (
	"fmt"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// NaluType is the nal_unit_type from the low five bits of the NAL header.
type NaluType uint8

const (
	NALU_NON_IDR   NaluType = 1
	NALU_PART_A    NaluType = 2
	NALU_PART_B    NaluType = 3
	NALU_PART_C    NaluType = 4
	NALU_IDR       NaluType = 5
	NALU_SEI       NaluType = 6
	NALU_SPS       NaluType = 7
	NALU_PPS       NaluType = 8
	NALU_AUD       NaluType = 9
	NALU_EO_SEQ    NaluType = 10
	NALU_EO_STREAM NaluType = 11
	NALU_FILL      NaluType = 12
)

// GetNaluType returns the type encoded in a NAL header byte.
func GetNaluType(header byte) NaluType {
	return NaluType(header & 0x1f)
}

// IsVideo reports whether the type carries coded picture data (VCL, 1-5).
func (t NaluType) IsVideo() bool {
	return t >= NALU_NON_IDR && t <= NALU_IDR
}

func (t NaluType) String() string {
	switch t {
	case NALU_NON_IDR:
		return "NonIDR"
	case NALU_PART_A:
		return "PartA"
	case NALU_PART_B:
		return "PartB"
	case NALU_PART_C:
		return "PartC"
	case NALU_IDR:
		return "IDR"
	case NALU_SEI:
		return "SEI"
	case NALU_SPS:
		return "SPS"
	case NALU_PPS:
		return "PPS"
	case NALU_AUD:
		return "AUD"
	case NALU_EO_SEQ:
		return "EndOfSequence"
	case NALU_EO_STREAM:
		return "EndOfStream"
	case NALU_FILL:
		return "Filler"
	default:
		return fmt.Sprintf("Other_%d", uint8(t))
	}
}

// RemoveEmulationBytes copies data while dropping the emulation prevention
// byte in every 00 00 03 sequence, turning an EBSP into the raw byte
// sequence payload.
func RemoveEmulationBytes(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeroCount := 0
	for _, b := range data {
		if zeroCount == 2 && b == 0x03 {
			zeroCount = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeroCount++
		} else {
			zeroCount = 0
		}
	}
	return out
}

// GetNALUsFromSample splits a sample with 4-byte big-endian length prefixes
// into NAL units. The returned slices borrow from sample.
func GetNALUsFromSample(sample []byte) ([][]byte, error) {
	if len(sample) < 4 {
		return nil, errs.ErrTruncated
	}
	var nalus [][]byte
	pos := 0
	for pos+4 <= len(sample) {
		length := int(pio.U32BE(sample[pos:]))
		pos += 4
		if length < 0 || pos+length > len(sample) {
			return nil, errs.ErrMalformed
		}
		nalus = append(nalus, sample[pos:pos+length])
		pos += length
	}
	return nalus, nil
}

// DumpNaluTypes returns a comma-separated list of the NAL unit types in a
// length-prefixed sample, for logging and debugging.
func DumpNaluTypes(sample []byte) string {
	nalus, err := GetNALUsFromSample(sample)
	if err != nil {
		return "<invalid>"
	}
	out := ""
	for i, nalu := range nalus {
		if i > 0 {
			out += ","
		}
		if len(nalu) == 0 {
			out += "<empty>"
			continue
		}
		out += GetNaluType(nalu[0]).String()
	}
	return out
}
