package core

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		reason  string
	}{
		{name: "valid", address: "1CbErtneaX2QVyUfwU7JGB7VzvPgrgc3uC"},
		{name: "shortest", address: "1" + strings.Repeat("a", 24)},
		{name: "empty", address: "", reason: ReasonNoAddress},
		{name: "ambiguous zero", address: "10bErtneaX2QVyUfwU7JGB7VzvPgrgc3uC", reason: ReasonInvalidAddress},
		{name: "ambiguous l", address: "1lbErtneaX2QVyUfwU7JGB7VzvPgrgc3uC", reason: ReasonInvalidAddress},
		{name: "wrong version", address: "3CbErtneaX2QVyUfwU7JGB7VzvPgrgc3uC", reason: ReasonInvalidAddress},
		{name: "too short", address: "1" + strings.Repeat("a", 23), reason: ReasonInvalidAddress},
		{name: "too long", address: "1" + strings.Repeat("a", 34), reason: ReasonInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.True(t, errors.Is(err, Validation(tt.reason)))
		})
	}
}

func TestValidateMessageShape(t *testing.T) {
	assert.True(t, errors.Is(ValidateMessageShape(""), Validation(ReasonNoMessage)))
	assert.True(t, errors.Is(ValidateMessageShape(strings.Repeat("1", 39)), Validation(ReasonInvalidMessage)))
	assert.NoError(t, ValidateMessageShape(strings.Repeat("1", 40)))
}

func TestValidateSignatureShape(t *testing.T) {
	assert.True(t, errors.Is(ValidateSignatureShape(""), Validation(ReasonNoSignature)))
	assert.NoError(t, ValidateSignatureShape("sig"))
}

func TestWithinWindow(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	stamp := func(ts time.Time) string {
		return strconv.FormatInt(ts.UnixMilli(), 10) + strings.Repeat("a", 40)
	}

	assert.True(t, WithinWindow(stamp(now), now))
	assert.True(t, WithinWindow(stamp(now.Add(-PhraseTTL)), now))
	assert.False(t, WithinWindow(stamp(now.Add(-PhraseTTL-time.Millisecond)), now))
	assert.False(t, WithinWindow(stamp(now.Add(time.Millisecond)), now))
	assert.False(t, WithinWindow("notanumber"+strings.Repeat("a", 40), now))
	assert.False(t, WithinWindow("123", now))
}

func TestIdentifier(t *testing.T) {
	msg := "1700000000000abcdefghijklmnopqrstuvwxyz0123456789"
	assert.Equal(t, "1addr"+msg[len(msg)-13:], Identifier("1addr", msg))
	assert.Equal(t, "1addrshort", Identifier("1addr", "short"))
}

func TestErrorTagAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Storage(cause)

	assert.Equal(t, "StorageError", err.Tag())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrValidation)

	named := &Error{Kind: KindDependency, Reason: "x", Name: "DOS", Code: 11}
	assert.Equal(t, "DOS", named.Tag())

	assert.Equal(t, KindStorage, AsError(cause).Kind)
	assert.Same(t, named, AsError(named))
	assert.Nil(t, AsError(nil))
}
