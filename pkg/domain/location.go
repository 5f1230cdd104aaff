package domain

import (
	"errors"
	"strings"
)

// ErrInvalidLocation is returned when an invalid location value is provided
var ErrInvalidLocation = errors.New("invalid location value")

// LocationUnknown is the fallback when a card carries no delivery point
const LocationUnknown = "Sin ubicacion"

// Location represents an immutable plant delivery point value object.
// Delivery points are free-form line or cell names ("Linea 1", "Celda B"),
// normalized so that rollups group consistently.
type Location struct {
	name string
}

// NewLocation creates a new Location value object with validation
func NewLocation(name string) (Location, error) {
	normalized := normalizeLocationName(name)
	if normalized == "" {
		return Location{}, ErrInvalidLocation
	}
	return Location{name: normalized}, nil
}

// ParseLocationOrUnknown normalizes a raw delivery point, falling back to
// the unknown placeholder so aggregations never key on the empty string.
func ParseLocationOrUnknown(name string) Location {
	loc, err := NewLocation(name)
	if err != nil {
		return Location{name: LocationUnknown}
	}
	return loc
}

func normalizeLocationName(name string) string {
	// Collapse internal runs of whitespace so "Linea  1" and "Linea 1" match
	return strings.Join(strings.Fields(name), " ")
}

// Name returns the normalized delivery point name
func (l Location) Name() string {
	return l.name
}

// String returns the string representation of the location
func (l Location) String() string {
	return l.name
}

// Equals checks if two locations are equal
func (l Location) Equals(other Location) bool {
	return strings.EqualFold(l.name, other.name)
}

// IsUnknown returns true if this is the fallback delivery point
func (l Location) IsUnknown() bool {
	return l.name == LocationUnknown
}

// MarshalText implements encoding.TextMarshaler for JSON/BSON serialization
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON/BSON deserialization
func (l *Location) UnmarshalText(text []byte) error {
	loc, err := NewLocation(string(text))
	if err != nil {
		return err
	}
	*l = loc
	return nil
}
