package fingerprint

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/grailbio/base/errors"
)

// KeySuffix is appended to every fingerprint key produced by EncodeKey. It
// makes clear that the object is a fingerprint and not the reads file named
// by the rest of the key.
const KeySuffix = ".somalier"

const upperhex = "0123456789ABCDEF"

// schemeRE matches the scheme of an absolute URL. Reads file URLs are not
// required to be valid URLs beyond that: "gds://vol/100%/x.bam" is a fine id.
var schemeRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// EncodeKey returns the key under which the fingerprint of the reads file id
// is stored in folder. Folder must end in a slash.
//
// The key is folder + percent-encoded(id) + KeySuffix. The percent encoding
// leaves the same characters unescaped as JavaScript's encodeURIComponent, so
// keys are byte-identical to the ones already in the store.
func EncodeKey(folder, id string) (string, error) {
	if !strings.HasSuffix(folder, "/") {
		return "", errors.E(errors.Invalid, "fingerprint folder must end with a slash:", folder)
	}
	if err := validateID(id); err != nil {
		return "", err
	}
	return folder + escapeComponent(id) + KeySuffix, nil
}

// DecodeKey returns the reads file identifier that key was encoded from. Both
// key generations are understood: percent-encoded keys with a KeySuffix, and
// legacy keys that hex encode the identifier with no suffix. A legacy key can
// never contain '%', while a percent-encoded URL always does (the scheme colon
// is escaped), so '%' selects the decoding.
//
// Errors are of kind errors.Invalid.
func DecodeKey(folder, key string) (string, error) {
	if !strings.HasSuffix(folder, "/") {
		return "", errors.E(errors.Invalid, "fingerprint folder must end with a slash:", folder)
	}
	if !strings.HasPrefix(key, folder) {
		return "", errors.E(errors.Invalid, "key", key, "does not belong to fingerprint folder", folder)
	}
	rest := key[len(folder):]
	var id string
	if strings.Contains(rest, "%") {
		decoded, err := url.PathUnescape(rest)
		if err != nil {
			return "", errors.E(errors.Invalid, err, "percent decode key", key)
		}
		if !strings.HasSuffix(decoded, KeySuffix) {
			return "", errors.E(errors.Invalid, "fingerprint key", key, "does not end with", KeySuffix)
		}
		id = strings.TrimSuffix(decoded, KeySuffix)
	} else {
		decoded, err := hex.DecodeString(rest)
		if err != nil {
			return "", errors.E(errors.Invalid, err, "hex decode key", key)
		}
		if !utf8.Valid(decoded) {
			return "", errors.E(errors.Invalid, "hex key", key, "is not UTF-8")
		}
		id = string(decoded)
	}
	if err := validateID(id); err != nil {
		return "", errors.E(err, "decode key", key)
	}
	return id, nil
}

// validateID checks that id looks like a reads file URL.
func validateID(id string) error {
	if !schemeRE.MatchString(id) {
		return errors.E(errors.Invalid, "identifier", id, "is not an absolute URL")
	}
	return nil
}

func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}

func escapeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	b := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b = append(b, '%', upperhex[c>>4], upperhex[c&15])
		} else {
			b = append(b, c)
		}
	}
	return string(b)
}
