package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain name", raw: "Linea 1", want: "Linea 1"},
		{name: "whitespace collapses", raw: "  Linea   1  ", want: "Linea 1"},
		{name: "empty is invalid", raw: "", wantErr: true},
		{name: "blank is invalid", raw: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewLocation(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Name())
		})
	}
}

func TestParseLocationOrUnknown(t *testing.T) {
	assert.Equal(t, "Celda B", ParseLocationOrUnknown("Celda B").Name())

	unknown := ParseLocationOrUnknown("")
	assert.Equal(t, LocationUnknown, unknown.Name())
	assert.True(t, unknown.IsUnknown())
	assert.False(t, ParseLocationOrUnknown("Linea 2").IsUnknown())
}

func TestLocationEquals(t *testing.T) {
	a := ParseLocationOrUnknown("Linea 1")
	b := ParseLocationOrUnknown("linea 1")
	c := ParseLocationOrUnknown("Linea 2")

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestLocationTextRoundTrip(t *testing.T) {
	loc := ParseLocationOrUnknown("Linea 1")
	text, err := loc.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Linea 1", string(text))

	var parsed Location
	require.NoError(t, parsed.UnmarshalText([]byte("Celda  B")))
	assert.Equal(t, "Celda B", parsed.Name())

	assert.Error(t, parsed.UnmarshalText([]byte("   ")))
}
