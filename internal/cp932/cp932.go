// Package cp932 transcodes between CP932 (Shift-JIS, the in-game text
// encoding for script strings and on-disk filenames) and UTF-8, grounded on
// util/cp932.c's conversion tables but implemented over
// golang.org/x/text/encoding/japanese rather than reproducing the table by
// hand.
package cp932

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ToUTF8 decodes CP932-encoded bytes to a UTF-8 string.
func ToUTF8(b []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.New("cp932: invalid byte sequence")
	}
	return string(out), nil
}

// FromUTF8 encodes a UTF-8 string as CP932 bytes.
func FromUTF8(s string) ([]byte, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}
