package meeting

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeBytes converts raw file bytes to a UTF-8 string. A UTF-8 BOM is
// stripped, UTF-16 is decoded when a BOM says so, and bytes that are not valid
// UTF-8 are read as Windows-1252 (the usual encoding of pasted Windows exports).
// The second return value names the detected encoding.
func DecodeBytes(data []byte) (string, string) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8"
	case bytes.HasPrefix(data, bomUTF16LE):
		if s, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data); ok {
			return s, "utf-16le"
		}
	case bytes.HasPrefix(data, bomUTF16BE):
		if s, ok := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data); ok {
			return s, "utf-16be"
		}
	}

	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	if s, ok := decodeWith(charmap.Windows1252, data); ok {
		return s, "windows-1252"
	}
	return string(data), "unknown"
}

func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
