package channel

import (
	"fmt"
	"regexp"
	"strings"
)

// A Bulgarian mobile national significant number: 9 digits starting 87/88/89
// (or the legacy 98/99 ranges).
var bgMobileRe = regexp.MustCompile(`^(8[7-9]|9[89])[0-9]{7}$`)

// NormalizeBGPhone canonicalizes a Bulgarian mobile number into the bare
// international form the SMS gateway expects (359XXXXXXXXX, no plus sign).
//
// Accepted inputs, after stripping spaces, dots, dashes, parentheses and a
// leading "+": 359XXXXXXXXX, 0XXXXXXXXX (national form), and the bare
// 9-digit mobile number. Anything else — including 00-prefixed international
// dialing — is rejected.
func NormalizeBGPhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	for _, sep := range []string{" ", "-", ".", "(", ")"} {
		s = strings.ReplaceAll(s, sep, "")
	}
	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid character in phone number %q", raw)
		}
	}

	var national string
	switch {
	case strings.HasPrefix(s, "359") && len(s) == 12:
		national = s[3:]
	case strings.HasPrefix(s, "0") && len(s) == 10:
		national = s[1:]
	case len(s) == 9:
		national = s
	default:
		return "", fmt.Errorf("unrecognized phone number format %q", raw)
	}

	if !bgMobileRe.MatchString(national) {
		return "", fmt.Errorf("not a valid Bulgarian mobile number %q", raw)
	}
	return "359" + national, nil
}
