package binschema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// lookupEncoding resolves a named character encoding. UTF-8 and ASCII are
// handled without a transform; nil is returned for them.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(name) {
	case "UTF-8", "UTF8", "ASCII":
		return nil, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "UTF-32LE":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case "UTF-32BE":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	case "LATIN-1", "ISO-8859-1", "ISO8859-1":
		return charmap.ISO8859_1, nil
	case "CP437", "IBM437":
		return charmap.CodePage437, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "SHIFT_JIS", "SJIS":
		return japanese.ShiftJIS, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrEncoding, name)
	}
}

func decodeText(data []byte, name string, replace bool) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		if strings.EqualFold(name, "ASCII") {
			for _, b := range data {
				if b > 127 {
					if replace {
						return asciiReplace(data), nil
					}
					return "", fmt.Errorf("%w: byte 0x%02x is not ASCII", ErrEncoding, b)
				}
			}
			return string(data), nil
		}
		if !utf8.Valid(data) {
			if replace {
				// one U+FFFD per invalid byte
				return string([]rune(string(data))), nil
			}
			return "", fmt.Errorf("%w: invalid UTF-8 sequence", ErrEncoding)
		}
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", ErrEncoding, name, err)
	}
	s := string(out)
	// x/text decoders substitute U+FFFD rather than failing.
	if !replace && strings.ContainsRune(s, utf8.RuneError) && !strings.Contains(string(data), string(utf8.RuneError)) {
		return "", fmt.Errorf("%w: undecodable input for %s", ErrEncoding, name)
	}
	return s, nil
}

func encodeText(s, name string, replace bool) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		if strings.EqualFold(name, "ASCII") {
			for _, r := range s {
				if r > 127 {
					if replace {
						s = asciiReplaceString(s)
						break
					}
					return nil, fmt.Errorf("%w: rune %q is not ASCII", ErrEncoding, r)
				}
			}
		}
		return []byte(s), nil
	}
	e := enc.NewEncoder()
	if replace {
		e = encoding.ReplaceUnsupported(e)
	}
	out, err := e.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %v", ErrEncoding, name, err)
	}
	return out, nil
}

func asciiReplace(data []byte) string {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b > 127 {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}

func asciiReplaceString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > 127 {
			r = '?'
		}
		b.WriteRune(r)
	}
	return b.String()
}
