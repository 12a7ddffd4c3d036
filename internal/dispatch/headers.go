package dispatch

import (
	"errors"
	"net/http"
)

// Header names understood by the dispatcher.
const (
	HeaderServerMethod = "Server-Method"
	HeaderProtectedKey = "Protected-Key"
)

var errInvisibleHeader = errors.New("header contains non-visible characters")

// headerString returns the first value of the named header.
// ok is false when the header is absent. A value with bytes outside
// visible ASCII (space and tab allowed) is an error.
func headerString(h http.Header, name string) (value string, ok bool, err error) {
	values := h.Values(name)
	if len(values) == 0 {
		return "", false, nil
	}
	v := values[0]
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 || c > 0x7e) && c != '\t' {
			return "", true, errInvisibleHeader
		}
	}
	return v, true, nil
}
