// Package validate checks user input. Failures carry a message safe to show
// to the user.
package validate

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	ADMIN_PASSWORD_MIN   = 12
	LINK_PASSWORD_MIN    = 6
	LINK_NAME_MAX        = 100
	RECOVERY_MESSAGE_MAX = 500
)

var ErrInvalid = errors.New("invalid input")

type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, message string) error {
	return &Error{Field: field, Message: message}
}

func AdminPassword(password string) error {
	if utf8.RuneCountInString(password) < ADMIN_PASSWORD_MIN {
		return invalid("password", "Password must be at least 12 characters")
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		return invalid("password", "Password must contain uppercase letters")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return invalid("password", "Password must contain numbers")
	}
	return nil
}

func LinkPassword(password string) error {
	if utf8.RuneCountInString(password) < LINK_PASSWORD_MIN {
		return invalid("password", "Password must be at least 6 characters")
	}
	return nil
}

func LinkName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return invalid("name", "Link name required")
	}
	if n > LINK_NAME_MAX {
		return invalid("name", "Link name too long")
	}
	return nil
}

func RecoveryMessage(message string) error {
	if utf8.RuneCountInString(message) > RECOVERY_MESSAGE_MAX {
		return invalid("message", "Message too long")
	}
	return nil
}

// Email accepts a bare address with a local part and a domain.
func Email(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "Invalid email")
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return invalid("email", "Invalid email")
	}
	return nil
}

// Required fails with message when value is blank.
func Required(field, value, message string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, message)
	}
	return nil
}
