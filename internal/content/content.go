package content

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"inbox/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidIdentity = errors.New("invalid identity")
)

var (
	policy   = bluemonday.StrictPolicy()
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Sanitize strips all markup from peer-provided text so it can be drawn
// in a terminal. Entities produced by the policy are decoded back.
func Sanitize(input string) string {
	return html.UnescapeString(policy.Sanitize(input))
}

// NormalizeBody trims the outgoing message body and rejects it when
// nothing is left.
func NormalizeBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	return trimmed, nil
}

// ValidateIdentity checks that the identity can be announced.
func ValidateIdentity(id models.Identity) error {
	if err := validate.Struct(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if strings.TrimSpace(id.Name) == "" {
		return fmt.Errorf("%w: name is blank", ErrInvalidIdentity)
	}
	return nil
}
