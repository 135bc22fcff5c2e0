package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func message(err error) string {
	var v *Error
	if errors.As(err, &v) {
		return v.Message
	}
	return ""
}

func TestAdminPassword(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"short", "Password must be at least 12 characters"},
		{"alllowercase1", "Password must contain uppercase letters"},
		{"NoNumbersHere", "Password must contain numbers"},
		{"CorrectHorse42", ""},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := AdminPassword(tt.password)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Equal(t, tt.want, message(err))
		})
	}
}

func TestLinkPassword(t *testing.T) {
	assert.Equal(t, "Password must be at least 6 characters", message(LinkPassword("12345")))
	assert.NoError(t, LinkPassword("secret1"))
}

func TestLinkName(t *testing.T) {
	assert.Equal(t, "Link name required", message(LinkName("   ")))
	assert.Equal(t, "Link name too long", message(LinkName(strings.Repeat("a", 101))))
	assert.NoError(t, LinkName(strings.Repeat("ä", 100)))
}

func TestRecoveryMessage(t *testing.T) {
	assert.NoError(t, RecoveryMessage(""))
	assert.NoError(t, RecoveryMessage(strings.Repeat("x", 500)))
	assert.Equal(t, "Message too long", message(RecoveryMessage(strings.Repeat("x", 501))))
}

func TestEmail(t *testing.T) {
	for _, ok := range []string{"admin@example.com", "a.b+c@sub.example.org"} {
		assert.NoError(t, Email(ok), ok)
	}
	for _, bad := range []string{"", "admin", "@example.com", "admin@", "Admin <admin@example.com>"} {
		assert.Equal(t, "Invalid email", message(Email(bad)), bad)
	}
}

func TestRequired(t *testing.T) {
	err := Required("password", " ", "Password required")
	assert.Equal(t, "Password required", err.Error())
	assert.NoError(t, Required("password", "x", "Password required"))
}
