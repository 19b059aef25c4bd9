package h264parser

import "fmt"

// CodecString returns the codecs parameter for MIME types, e.g.
// "avc1.640020" for High profile level 3.2.
func CodecString(sampleEntry string, sps *SPSInfo) string {
	return fmt.Sprintf("%s.%02X%02X%02X", sampleEntry, sps.Profile, sps.ProfileCompatibility, sps.Level)
}
