package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is an opaque field map as delivered by a source system.
type Record map[string]any

// String returns the trimmed string form of the first non-empty key.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case float64:
			// JSON numbers decode as float64; large ids must not turn into exponents.
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy so snapshots never alias caller maps.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Field is an optional normalized value. Absent fields have Present == false;
// an empty string is never stored as a present value.
type Field struct {
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// NewField returns a present field for non-empty input and an absent one otherwise.
func NewField(v string) Field {
	if v == "" {
		return Field{}
	}
	return Field{Value: v, Present: true}
}

// NormalizedRecord is the canonical comparable shape of a contact.
type NormalizedRecord struct {
	FullName     Field `json:"full_name"`
	FirstName    Field `json:"first_name"`
	LastName     Field `json:"last_name"`
	Email        Field `json:"email"`
	Organization Field `json:"organization"`
	Title        Field `json:"title"`
}

// EmailLocal returns the part of the email before '@'.
func (n NormalizedRecord) EmailLocal() string {
	local, _, _ := strings.Cut(n.Email.Value, "@")
	return local
}

// EmailDomain returns the part of the email after '@', or "" if there is none.
func (n NormalizedRecord) EmailDomain() string {
	_, domain, ok := strings.Cut(n.Email.Value, "@")
	if !ok {
		return ""
	}
	return domain
}
