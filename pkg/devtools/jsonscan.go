package devtools

import "strconv"

// The functions in this file avoid a full JSON parse on the hot path:
// screencast frames run a few hundred KB and arrive many times a second,
// so message routing and frame-header extraction scan the raw bytes
// directly for the handful of fields that matter (spec.md 4.2's "JSON
// parsing" requirement) rather than unmarshalling the whole payload. Full
// `encoding/json` parsing is reserved for target-discovery HTTP responses
// and command parameter/result structs, which are small and infrequent.
//
// Every field scan here is depth-aware (it tracks object/array nesting) so a
// field name that also happens to appear inside a nested params/result
// object — e.g. Page.screencastFrame's own inner "sessionId" integer,
// distinct from the outer CDP routing sessionId string — is never
// mistaken for the top-level field of the same name.

// scanMethod reports the value of the top-level "method" field, if
// present. Its presence (vs. "id" with no "method") is what distinguishes
// a CDP event from a command response on the wire.
func scanMethod(b []byte) (string, bool) {
	i, ok := topLevelValueStart(b, "method")
	if !ok {
		return "", false
	}
	return scanStringValueAt(b, i)
}

// scanID reports the value of the top-level "id" field, if present.
func scanID(b []byte) (int64, bool) {
	i, ok := topLevelValueStart(b, "id")
	if !ok {
		return 0, false
	}
	return scanIntValueAt(b, i)
}

// scanSessionID reports the value of the top-level "sessionId" field (the
// CDP routing session, a string), if present.
func scanSessionID(b []byte) (string, bool) {
	i, ok := topLevelValueStart(b, "sessionId")
	if !ok {
		return "", false
	}
	return scanStringValueAt(b, i)
}

// scanParamsObject returns the raw byte range of the top-level "params"
// object, if present.
func scanParamsObject(b []byte) ([]byte, bool) {
	i, ok := topLevelValueStart(b, "params")
	if !ok {
		return nil, false
	}
	start := skipSpace(b, i)
	if start >= len(b) || b[start] != '{' {
		return nil, false
	}
	end := matchBrace(b, start)
	if end < 0 {
		return nil, false
	}
	return b[start:end], true
}

// scanDataField reports the byte range of the base64 payload in a
// Page.screencastFrame event's params "data" field, without copying it.
func scanDataField(params []byte) ([]byte, bool) {
	i, ok := topLevelValueStart(params, "data")
	if !ok {
		return nil, false
	}
	s, ok := scanStringValueAt(params, i)
	if !ok {
		return nil, false
	}
	return []byte(s), true
}

// scanFrameSessionID reports a Page.screencastFrame params object's own
// "sessionId" integer — the frame sessionId used to acknowledge the frame,
// distinct from the CDP routing sessionId.
func scanFrameSessionID(params []byte) (int64, bool) {
	i, ok := topLevelValueStart(params, "sessionId")
	if !ok {
		return 0, false
	}
	return scanIntValueAt(params, i)
}

// scanMetadataDimensions reports the "metadata":{"deviceWidth":N,
// "deviceHeight":N,...} fields of a Page.screencastFrame params object.
func scanMetadataDimensions(params []byte) (width, height int, ok bool) {
	i, ok := topLevelValueStart(params, "metadata")
	if !ok {
		return 0, 0, false
	}
	start := skipSpace(params, i)
	if start >= len(params) || params[start] != '{' {
		return 0, 0, false
	}
	end := matchBrace(params, start)
	if end < 0 {
		end = len(params)
	}
	meta := params[start:end]
	widthI, wOK := topLevelValueStart(meta, "deviceWidth")
	heightI, hOK := topLevelValueStart(meta, "deviceHeight")
	if !wOK || !hOK {
		return 0, 0, false
	}
	wVal, ok1 := scanIntValueAt(meta, widthI)
	hVal, ok2 := scanIntValueAt(meta, heightI)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return int(wVal), int(hVal), true
}

// hasEarlyErrorField reports whether the byte sequence "error": starts
// within the first maxColumn bytes of the message, at any nesting depth
// (a plain substring search, not a depth-aware scan). CDP error responses
// are short ({"id":N,"error":{...}}), so an "error" key showing up late in
// a large payload (e.g. inside a Runtime.evaluate result value) is not a
// protocol error.
func hasEarlyErrorField(b []byte, maxColumn int) bool {
	i := indexBytes(b, []byte(`"error":`))
	return i >= 0 && i < maxColumn
}

// indexBytes is a straightforward O(n*m) substring search; m is always a
// short, fixed field name, so this stays effectively O(n) for the payload
// sizes this package handles. A SIMD-accelerated search is a valid
// drop-in replacement per spec.md 4.2/9, but isn't required for
// correctness.
func indexBytes(b, sub []byte) int {
	n, m := len(b), len(sub)
	if m == 0 || m > n {
		return -1
	}
	first := sub[0]
	for i := 0; i+m <= n; i++ {
		if b[i] != first {
			continue
		}
		match := true
		for j := 1; j < m; j++ {
			if b[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// topLevelValueStart scans b as a single JSON object and returns the byte
// offset of the value following "key": when key appears as a field of the
// outermost object (depth 1). Keys or values of the same name nested
// inside arrays/objects are skipped, not matched.
func topLevelValueStart(b []byte, key string) (int, bool) {
	i := 0
	for i < len(b) && b[i] != '{' {
		i++
	}
	if i >= len(b) {
		return 0, false
	}
	i++
	depth := 1
	for i < len(b) && depth > 0 {
		switch b[i] {
		case '"':
			end := skipString(b, i)
			if end < 0 {
				return 0, false
			}
			if depth == 1 {
				k := skipSpace(b, end)
				if k < len(b) && b[k] == ':' {
					if string(b[i+1:end-1]) == key {
						return k + 1, true
					}
					i = k + 1
					continue
				}
			}
			i = end
		case '{', '[':
			depth++
			i++
		case '}', ']':
			depth--
			i++
		default:
			i++
		}
	}
	return 0, false
}

// skipString returns the index just past the closing quote of the string
// starting at b[i] (which must be '"'), or -1 if unterminated.
func skipString(b []byte, i int) int {
	j := i + 1
	for j < len(b) {
		if b[j] == '\\' {
			j += 2
			continue
		}
		if b[j] == '"' {
			return j + 1
		}
		j++
	}
	return -1
}

// scanStringValueAt reads a JSON string value (unescaping \" and \\)
// starting at the byte immediately after a field's colon. Leading
// whitespace before the opening quote is skipped.
func scanStringValueAt(b []byte, at int) (string, bool) {
	i := skipSpace(b, at)
	if i >= len(b) || b[i] != '"' {
		return "", false
	}
	i++
	start := i
	var out []byte
	for i < len(b) {
		switch b[i] {
		case '\\':
			if out == nil {
				out = append(out, b[start:i]...)
			}
			i++
			if i >= len(b) {
				return "", false
			}
			out = append(out, b[i])
			i++
		case '"':
			if out != nil {
				return string(out), true
			}
			return string(b[start:i]), true
		default:
			if out != nil {
				out = append(out, b[i])
			}
			i++
		}
	}
	return "", false
}

// scanIntValueAt reads a JSON integer value starting at the byte
// immediately after a field's colon.
func scanIntValueAt(b []byte, at int) (int64, bool) {
	i := skipSpace(b, at)
	start := i
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		i++
	}
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b[start:i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func skipSpace(b []byte, i int) int {
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// matchBrace returns the index just past the closing '}' matching the
// first '{' found at or after start, or -1 if unbalanced. String contents
// are skipped so braces inside string values don't confuse the count.
func matchBrace(b []byte, start int) int {
	i := start
	for i < len(b) && b[i] != '{' {
		i++
	}
	if i >= len(b) {
		return -1
	}
	depth := 0
	for i < len(b) {
		switch b[i] {
		case '"':
			end := skipString(b, i)
			if end < 0 {
				return -1
			}
			i = end
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return -1
}
