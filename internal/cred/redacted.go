package cred

// Redacted wraps a sensitive string to prevent accidental logging.
//
// The wrapper implements fmt.Stringer, fmt.GoStringer and the marshaling
// interfaces to return "[REDACTED]" instead of the actual value, so a
// secret that ends up in a log message, error string, or serialized
// structure never leaks.
type Redacted struct {
	value string
}

// NewRedacted wraps the given secret value.
func NewRedacted(value string) Redacted {
	return Redacted{value: value}
}

// Value returns the actual secret. Use only when the secret must be sent
// in an HTTP header or written to the secret store. Never log the result.
func (r Redacted) Value() string {
	return r.value
}

// IsEmpty reports whether the wrapped value is empty.
func (r Redacted) IsEmpty() bool {
	return r.value == ""
}

// String implements fmt.Stringer.
func (r Redacted) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (r Redacted) GoString() string {
	return "cred.Redacted{[REDACTED]}"
}

// MarshalText implements encoding.TextMarshaler.
func (r Redacted) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (r Redacted) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
