package speech

import "bytes"

var id3Magic = []byte("ID3")

// IsMP3 reports whether data starts with an ID3v2 tag or an MPEG audio
// frame header.
func IsMP3(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	if bytes.HasPrefix(data, id3Magic) {
		return true
	}
	return isFrameSync(data)
}

func isFrameSync(data []byte) bool {
	if len(data) < 2 || data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}
	// Version bits 01 and layer bits 00 are reserved.
	version := (data[1] >> 3) & 0x03
	layer := (data[1] >> 1) & 0x03
	return version != 0x01 && layer != 0x00
}
