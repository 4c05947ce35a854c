package logger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Placeholder substituted for the value of any credential-bearing field.
const Placeholder = "[REDACTED]"

// Credential-bearing field names are matched case-insensitively: exact names
// plus any field ending in "token" or "session". Redaction is applied
// unconditionally wherever request or response payloads are logged, including
// error paths.
var (
	denyExact    = map[string]struct{}{"password": {}, "code": {}, "authorization": {}, "cookie": {}}
	denySuffixes = []string{"token", "session"}
)

// Sensitive reports whether a field with the given name must never be logged
// in the clear.
func Sensitive(name string) bool {
	k := strings.ToLower(name)
	if _, ok := denyExact[k]; ok {
		return true
	}
	for _, suffix := range denySuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// RedactMap returns a deep copy of m with the values of sensitive fields
// replaced by Placeholder. Nested maps and slices of maps are walked; other
// values are copied as-is.
func RedactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if Sensitive(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return RedactMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = redactValue(e)
		}
		return out
	default:
		return v
	}
}

// RedactJSON parses a JSON document and redacts sensitive fields, returning a
// value safe to pass to slog.Any. Non-object documents and unparseable input
// collapse to a size note so that raw credential material can never leak
// through a malformed body.
func RedactJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Sprintf("<%d bytes>", len(raw))
	}
	return RedactMap(m)
}
