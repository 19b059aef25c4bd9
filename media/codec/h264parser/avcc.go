package h264parser

import (
	"fmt"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// AVCDecoderConfRecord is the AVCDecoderConfigurationRecord carried in the
// avcC box (ISO/IEC 14496-15). Only records with a NAL unit length field of
// 4 bytes (lengthSizeMinusOne == 3) are accepted.
type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8
	ProfileCompatibility uint8
	AVCLevelIndication   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

var ErrDecconfInvalid = fmt.Errorf("h264parser: AVCDecoderConfRecord invalid")

// Unmarshal parses the record from b and returns the number of bytes
// consumed.
func (self *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 6 {
		err = errs.Wrapf(errs.ErrTruncated, "h264parser: AVCDecoderConfRecord")
		return
	}
	if b[0] != 1 {
		err = errs.Wrapf(errs.ErrUnsupported, "h264parser: configurationVersion %d", b[0])
		return
	}

	self.AVCProfileIndication = b[1]
	self.ProfileCompatibility = b[2]
	self.AVCLevelIndication = b[3]
	if lengthSizeMinusOne := b[4] & 0x03; lengthSizeMinusOne != 3 {
		err = errs.Wrapf(errs.ErrUnsupported, "h264parser: lengthSizeMinusOne %d", lengthSizeMinusOne)
		return
	}
	spscount := int(b[5] & 0x1f)
	n += 6

	for i := 0; i < spscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		spslen := int(pio.U16BE(b[n:]))
		n += 2

		if len(b) < n+spslen {
			err = ErrDecconfInvalid
			return
		}
		self.SPS = append(self.SPS, b[n:n+spslen])
		n += spslen
	}

	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++

	for i := 0; i < ppscount; i++ {
		if len(b) < n+2 {
			err = ErrDecconfInvalid
			return
		}
		ppslen := int(pio.U16BE(b[n:]))
		n += 2

		if len(b) < n+ppslen {
			err = ErrDecconfInvalid
			return
		}
		self.PPS = append(self.PPS, b[n:n+ppslen])
		n += ppslen
	}

	return
}

// Len returns the encoded size of the record in bytes.
func (self AVCDecoderConfRecord) Len() (n int) {
	n = 7
	for _, sps := range self.SPS {
		n += 2 + len(sps)
	}
	for _, pps := range self.PPS {
		n += 2 + len(pps)
	}
	return
}

// Marshal writes the record to b, which must be at least Len() bytes, and
// returns the number of bytes written. The reserved bits around the length
// size and SPS count are set to ones as required, giving the bytes 0xFF and
// 0xE0|numSPS.
func (self AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = self.AVCProfileIndication
	b[2] = self.ProfileCompatibility
	b[3] = self.AVCLevelIndication
	b[4] = 0xff
	b[5] = uint8(len(self.SPS)) | 0xe0
	n += 6

	for _, sps := range self.SPS {
		pio.PutU16BE(b[n:], uint16(len(sps)))
		n += 2
		copy(b[n:], sps)
		n += len(sps)
	}

	b[n] = uint8(len(self.PPS))
	n++

	for _, pps := range self.PPS {
		pio.PutU16BE(b[n:], uint16(len(pps)))
		n += 2
		copy(b[n:], pps)
		n += len(pps)
	}

	return
}

// Encode returns the record as a freshly allocated byte slice.
func (self AVCDecoderConfRecord) Encode() []byte {
	buf := make([]byte, self.Len())
	self.Marshal(buf)
	return buf
}
