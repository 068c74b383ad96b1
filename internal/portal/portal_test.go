package portal

import (
	"regexp"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPath(t *testing.T) {
	got := requestPath(":1.42", "eitype12_3")
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/eitype12_3"), got)
	assert.True(t, got.IsValid())
}

func TestNewTokenIsUniqueAndValid(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	a, b := newToken(), newToken()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, valid, a)
	assert.Regexp(t, valid, b)
}

func TestParseResponse(t *testing.T) {
	results := map[string]dbus.Variant{"restore_token": dbus.MakeVariant("abc")}

	got, err := parseResponse([]any{uint32(0), results})
	require.NoError(t, err)
	assert.Equal(t, "abc", got["restore_token"].Value())

	_, err = parseResponse([]any{uint32(1), results})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = parseResponse([]any{uint32(2), results})
	assert.ErrorIs(t, err, ErrFailed)

	_, err = parseResponse([]any{uint32(0)})
	assert.ErrorIs(t, err, ErrBadResponse)

	_, err = parseResponse([]any{"0", results})
	assert.ErrorIs(t, err, ErrBadResponse)

	_, err = parseResponse([]any{uint32(0), "nope"})
	assert.ErrorIs(t, err, ErrBadResponse)
}
