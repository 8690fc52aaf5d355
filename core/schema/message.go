// Package schema defines the value types shared by the field engine:
// messages, message kinds, trigger events, validation rules, and hold
// scopes. All types here are plain data; behavior lives in core/field
// and core/validation.
package schema

// Kind classifies a message and drives the derived error/warning flags.
type Kind string

const (
	// KindError marks a message that makes the owning field invalid.
	KindError Kind = "error"
	// KindWarning marks a message that flags the field without failing it.
	KindWarning Kind = "warning"
	// KindInfo marks an informational message with no effect on flags.
	KindInfo Kind = "info"
)

// Message is a single diagnostic attached to a field.
type Message struct {
	// Text is the human-readable message body.
	Text string `yaml:"message" json:"message"`

	// Kind classifies the message. See Kind constants.
	Kind Kind `yaml:"type" json:"type"`
}

// IsZero reports whether the message is empty.
func (m Message) IsZero() bool {
	return m.Text == "" && m.Kind == ""
}

// HasKind reports whether any message in the list carries the given kind.
func HasKind(messages []Message, kind Kind) bool {
	for _, m := range messages {
		if m.Kind == kind {
			return true
		}
	}
	return false
}
