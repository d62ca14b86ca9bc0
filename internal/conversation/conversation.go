// Package conversation models chat turns and the pure transforms over them.
package conversation

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged message. Order within a conversation is chronological.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks that the role is one of the known roles.
func (t Turn) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Role, validation.Required, validation.In(RoleUser, RoleAssistant, RoleSystem)),
	)
}

// Validate checks every turn and reports the first failing 1-based index.
func Validate(turns []Turn) error {
	for i, t := range turns {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
	}
	return nil
}

// Block renders the transcript handed to the model, one line per turn:
// "[<1-based index>][<role>] <content>".
func Block(turns []Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("[%d][%s] %s", i+1, t.Role, t.Content)
	}
	return strings.Join(lines, "\n")
}

// Transcript renders the turns as Markdown sections separated by rules. It is
// the deterministic body used when no usable summary exists.
func Transcript(turns []Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = fmt.Sprintf("### %s\n%s\n", speaker(t.Role), strings.TrimSpace(t.Content))
	}
	return strings.Join(parts, "\n---\n")
}

func speaker(r Role) string {
	switch r {
	case RoleUser:
		return "👤 User"
	case RoleAssistant:
		return "🤖 Assistant"
	default:
		return "🛠 System"
	}
}
