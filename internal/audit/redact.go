package audit

import (
	"encoding/json"
	"strings"
)

// sensitiveKeyParts are key substrings that always trigger redaction.
var sensitiveKeyParts = []string{
	"token",
	"key",
	"secret",
	"password",
	"authorization",
	"cookie",
	"credential",
	"apikey",
	"maxauth",
}

const redactedValue = "[REDACTED]"

// Redact replaces sensitive values in a JSON params document with
// [REDACTED]. Keys are matched case-insensitively against the built-in
// patterns and the provided extra hints, recursing through nested objects
// and arrays.
func Redact(params json.RawMessage, hints []string) json.RawMessage {
	if len(params) == 0 {
		return params
	}

	if out, changed := redactObject(params, hints); changed {
		return out
	}
	if out, changed := redactArray(params, hints); changed {
		return out
	}
	return params
}

func redactObject(params json.RawMessage, hints []string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(params, &obj); err != nil {
		return params, false
	}

	changed := false
	for key, val := range obj {
		if shouldRedact(key, hints) {
			masked, _ := json.Marshal(redactedValue)
			obj[key] = masked
			changed = true
			continue
		}
		if nested := Redact(val, hints); string(nested) != string(val) {
			obj[key] = nested
			changed = true
		}
	}
	if !changed {
		return params, false
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return params, false
	}
	return out, true
}

func redactArray(params json.RawMessage, hints []string) (json.RawMessage, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(params, &arr); err != nil {
		return params, false
	}

	changed := false
	for i, val := range arr {
		if nested := Redact(val, hints); string(nested) != string(val) {
			arr[i] = nested
			changed = true
		}
	}
	if !changed {
		return params, false
	}

	out, err := json.Marshal(arr)
	if err != nil {
		return params, false
	}
	return out, true
}

// shouldRedact checks if a key matches any built-in pattern or extra hint.
func shouldRedact(key string, hints []string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	for _, hint := range hints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}
