package discovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/budget"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// Kind classifies a pipeline failure. The set is closed.
type Kind string

const (
	KindInvalidInput    Kind = "invalid-input"
	KindUsageLimit      Kind = "usage-limit"
	KindNoResults       Kind = "no-results"
	KindProviderFailure Kind = "provider-failure"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

// Error is a classified failure carrying a user-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of kind.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf classifies any error.
func KindOf(err error) Kind {
	var de *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return de.Kind
	case errors.Is(err, models.ErrInvalidProfile), errors.Is(err, budget.ErrOverCeiling):
		return KindInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, llm.ErrProvider):
		return KindProviderFailure
	default:
		return KindInternal
	}
}

// UserMessage returns the message a caller may show for err.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" && de.Kind != KindInternal {
		return de.Message
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return Scrub(err.Error())
	case KindProviderFailure:
		return "The AI provider could not complete the request. Please try again shortly."
	case KindTimeout:
		return "Generation took too long. Please retry."
	case KindNoResults:
		return "No usable results were generated for this profile."
	default:
		if err == nil {
			return ""
		}
		return "An internal error occurred: " + Scrub(err.Error())
	}
}

var (
	uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	tempPattern = regexp.MustCompile(`\b(?:tmp|temp)[\w.-]*\d[\w.-]*`)
	pathPattern = regexp.MustCompile(`(?:[A-Za-z]:\\|/)[\w.\-]+(?:[\\/][\w.\-]+)+`)
)

// Scrub removes filesystem paths, UUIDs and temp filenames from msg.
func Scrub(msg string) string {
	msg = pathPattern.ReplaceAllString(msg, "[path]")
	msg = uuidPattern.ReplaceAllString(msg, "[id]")
	msg = tempPattern.ReplaceAllString(msg, "[tmp]")
	return msg
}
