// Package sanitize redacts protected health information and other sensitive
// material from event payloads before they are persisted or transmitted.
//
// The sanitizer is a pure function over JSON-like values (map[string]any,
// []any, scalars). It never mutates its input, never performs I/O, and never
// fails: unrecognized value types pass through unchanged.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// phiFields are dropped from payloads wholesale, matched case-insensitively.
var phiFields = map[string]struct{}{
	"patient_name":        {},
	"patient_first_name":  {},
	"patient_last_name":   {},
	"patient_dob":         {},
	"patient_phone":       {},
	"patient_email":       {},
	"patient_address":     {},
	"patient_ssn":         {},
	"member_id":           {},
	"policy_number":       {},
	"subscriber_name":     {},
	"insurance_member_id": {},
	"medicare_number":     {},
	"medicaid_number":     {},
}

// sensitiveFields cover credentials and secrets, matched case-insensitively.
var sensitiveFields = map[string]struct{}{
	"api_key":   {},
	"password":  {},
	"token":     {},
	"secret":    {},
	"auth":      {},
	"signature": {},
}

// allowedContextKeys is the allow-list for the top-level context payload.
// Anything not listed here is dropped regardless of content.
var allowedContextKeys = map[string]struct{}{
	"page_load_time":         {},
	"form_step":              {},
	"workflow_position":      {},
	"recommendation_shown":   {},
	"user_preferences":       {},
	"feature_flags":          {},
	"ab_test_group":          {},
	"screen_resolution":      {},
	"device_type":            {},
	"connection_speed":       {},
	"previous_action":        {},
	"time_since_last_action": {},
}

// Sentinel labels substituted for values that look like PHI.
const (
	SSNDetected   = "SSN_DETECTED"
	PhoneDetected = "PHONE_DETECTED"
	DateDetected  = "DATE_DETECTED"

	hashedPrefix  = "HASHED_"
	maxPlainLen   = 100
	sha256HexLen  = 64
	hashedTokenLen = len(hashedPrefix) + sha256HexLen
)

var (
	ssnPattern   = regexp.MustCompile(`\d{3}-?\d{2}-?\d{4}`)
	phonePattern = regexp.MustCompile(`\(\d{3}\)\s?\d{3}-?\d{4}`)
	datePattern  = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
)

// EventData returns a redacted copy of a nested event payload.
//
// Rules, applied depth-first per leaf key:
//   - keys on the PHI or sensitive denylists are dropped entirely
//   - strings longer than 100 characters become "HASHED_" + sha256(value)
//   - strings matching SSN, US phone, or slash-date patterns become the
//     corresponding sentinel label (first match wins, in that order)
//   - everything else passes through unchanged
func EventData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		if isDeniedKey(key) {
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

// Context returns a copy of a context payload restricted to the allow-list.
func Context(context map[string]any) map[string]any {
	out := make(map[string]any, len(context))
	for key, value := range context {
		if _, ok := allowedContextKeys[key]; ok {
			out[key] = value
		}
	}
	return out
}

// HashToken produces the opaque replacement token for an over-long string.
func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hashedPrefix + hex.EncodeToString(sum[:])
}

func isDeniedKey(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := phiFields[lower]; ok {
		return true
	}
	_, ok := sensitiveFields[lower]
	return ok
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return EventData(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = sanitizeValue(elem)
		}
		return out
	case string:
		return sanitizeString(v)
	default:
		// Non-string scalars carry no redactable text.
		return value
	}
}

func sanitizeString(s string) string {
	// A hash token is itself hex and can trip the digit patterns below;
	// recognizing it keeps sanitization idempotent.
	if isHashToken(s) {
		return s
	}
	if len(s) > maxPlainLen {
		return HashToken(s)
	}
	switch {
	case ssnPattern.MatchString(s):
		return SSNDetected
	case phonePattern.MatchString(s):
		return PhoneDetected
	case datePattern.MatchString(s):
		return DateDetected
	}
	return s
}

func isHashToken(s string) bool {
	if len(s) != hashedTokenLen || !strings.HasPrefix(s, hashedPrefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(hashedPrefix):])
	return err == nil
}
