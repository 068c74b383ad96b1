package layoutdetect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGSettingsUint32(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"uint32 1\n", 1, false},
		{"uint32 0", 0, false},
		{"  3  ", 3, false},
		{"@u 2", 2, false},
		{"", 0, true},
		{"uint32 -1", 0, true},
		{"No such key 'current'", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseGSettingsUint32(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNotDetected, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestGNOMEUsesGSettings(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("uint32 2\n"), nil
	}

	idx, err := GNOME(run)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx)
	assert.Equal(t, "gsettings", gotName)
	assert.Equal(t, []string{"get", "org.gnome.desktop.input-sources", "current"}, gotArgs)
}

func TestDetectorFirstSuccessWins(t *testing.T) {
	calls := 0
	fail := Source{Name: "gnome", Detect: func(context.Context) (uint32, error) {
		calls++
		return 0, errors.New("gsettings: not found")
	}}
	ok := Source{Name: "kde", Detect: func(context.Context) (uint32, error) {
		calls++
		return 1, nil
	}}
	never := Source{Name: "other", Detect: func(context.Context) (uint32, error) {
		t.Fatal("source after a success must not run")
		return 0, nil
	}}

	idx, found := NewWithSources(fail, ok, never).Detect(context.Background())
	assert.True(t, found)
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, 2, calls)
}

func TestDetectorNothingDetected(t *testing.T) {
	fail := Source{Name: "gnome", Detect: func(context.Context) (uint32, error) {
		return 0, ErrNotDetected
	}}

	_, found := NewWithSources(fail).Detect(context.Background())
	assert.False(t, found)

	_, found = NewWithSources().Detect(context.Background())
	assert.False(t, found)
}

func TestNewWithoutBusSkipsKDE(t *testing.T) {
	d := New(nil)
	require.Len(t, d.sources, 1)
	assert.Equal(t, "gnome", d.sources[0].Name)
}
