package h264parser

import (
	"bytes"
	"encoding/binary"

	jsoniter "github.com/json-iterator/go"

	"github.com/polw1/mp4ff/common/errs"
)

const (
	SEI_TYPE_USER_DATA_UNREGISTERED = 5
	// Custom user data payload carrying a sender timestamp, as emitted by
	// some live encoders: either 8 raw big-endian bytes or JSON {"ts":N}.
	SEI_TYPE_USER_DATA_TS = 242
)

// SEIPayload is one payload of an SEI NAL unit. Data borrows from the
// NAL unit.
type SEIPayload struct {
	Type uint
	Data []byte
}

// ParseSEI splits an SEI NAL unit into its payloads. The variable-length
// type and size fields accumulate bytes until a byte below 0xFF. A payload
// with type 0 and size 0 ends the list.
func ParseSEI(nalu []byte) ([]SEIPayload, error) {
	if len(nalu) < 1 || GetNaluType(nalu[0]) != NALU_SEI {
		return nil, errs.Wrapf(errs.ErrUnsupported, "h264parser: not an SEI NAL unit")
	}
	var payloads []SEIPayload
	pos := 1
	for pos < len(nalu) {
		var payloadType uint
		for pos < len(nalu) {
			b := nalu[pos]
			pos++
			payloadType += uint(b)
			if b != 0xff {
				break
			}
		}
		var payloadSize uint
		for pos < len(nalu) {
			b := nalu[pos]
			pos++
			payloadSize += uint(b)
			if b != 0xff {
				break
			}
		}
		if pos+int(payloadSize) > len(nalu) {
			break
		}
		payloads = append(payloads, SEIPayload{
			Type: payloadType,
			Data: nalu[pos : pos+int(payloadSize)],
		})
		pos += int(payloadSize)
		if payloadType == 0 && payloadSize == 0 {
			break
		}
	}
	return payloads, nil
}

// UserDataUnregistered is the uuid and body of an SEI payload of type 5.
type UserDataUnregistered struct {
	UUID []byte
	Data []byte
}

// ParseUserDataUnregistered splits a type-5 SEI payload into its 16-byte
// uuid and the user data after it.
func ParseUserDataUnregistered(p SEIPayload) (*UserDataUnregistered, error) {
	if p.Type != SEI_TYPE_USER_DATA_UNREGISTERED {
		return nil, errs.Wrapf(errs.ErrUnsupported, "h264parser: SEI payload type %d", p.Type)
	}
	if len(p.Data) < 16 {
		return nil, errs.Wrapf(errs.ErrTruncated, "h264parser: user data unregistered")
	}
	return &UserDataUnregistered{UUID: p.Data[:16], Data: p.Data[16:]}, nil
}

// ParseUserDataTimestamp extracts the sender timestamp from a type-242
// payload. An 8-byte payload is a raw big-endian value, anything else is
// JSON after the last zero byte.
func ParseUserDataTimestamp(p SEIPayload) (uint64, error) {
	if p.Type != SEI_TYPE_USER_DATA_TS {
		return 0, errs.Wrapf(errs.ErrUnsupported, "h264parser: SEI payload type %d", p.Type)
	}
	if len(p.Data) == 8 {
		return binary.BigEndian.Uint64(p.Data), nil
	}
	info := struct {
		Ts uint64 `json:"ts"`
	}{}
	data := p.Data[bytes.LastIndexByte(p.Data, 0)+1:]
	if err := jsoniter.Unmarshal(data, &info); err != nil {
		return 0, errs.Wrapf(err, "h264parser: user data timestamp")
	}
	return info.Ts, nil
}
