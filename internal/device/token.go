package device

import "strings"

// ExtractDeviceID returns the text inside the first bracket pair of a push
// token, e.g. "abc123" for "ExponentPushToken[abc123]". The second result is
// false when the token has no "[" followed later by "]".
func ExtractDeviceID(pushToken string) (string, bool) {
	start := strings.IndexByte(pushToken, '[')
	if start < 0 {
		return "", false
	}
	rest := pushToken[start+1:]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
