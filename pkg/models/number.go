package models

import (
	"bytes"
	"strings"
)

// Number is a provider numeric field that may arrive as a JSON string or a
// JSON number. It keeps the raw text; Float parses it on demand so a bad
// value never fails the surrounding decode.
type Number string

// UnmarshalJSON accepts "1.5", 1.5 and null.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	*n = Number(strings.Trim(string(b), `"`))
	return nil
}

// Float parses n, reporting false when it is not a finite number.
func (n Number) Float() (float64, bool) {
	return ParseNumber(string(n))
}

// FloatOr parses n and returns def when parsing fails.
func (n Number) FloatOr(def float64) float64 {
	if v, ok := n.Float(); ok {
		return v
	}
	return def
}
