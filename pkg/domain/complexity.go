package domain

import (
	"errors"
	"strconv"
)

// ErrInvalidComplexity is returned when an invalid complexity value is provided
var ErrInvalidComplexity = errors.New("invalid complexity value")

// Complexity represents an immutable material complexity rating value object.
// Valid ratings run from 1 (trivial handling) to 5 (critical handling).
type Complexity struct {
	value int
}

const (
	// ComplexityMin is the lowest valid rating
	ComplexityMin = 1
	// ComplexityMax is the highest valid rating
	ComplexityMax = 5
	// ComplexityDefault is used when a card carries no rating
	ComplexityDefault = 1
	// complexityCriticalThreshold marks the rating where handling doubles load points
	complexityCriticalThreshold = 4
)

// NewComplexity creates a new Complexity value object with validation
func NewComplexity(v int) (Complexity, error) {
	if v < ComplexityMin || v > ComplexityMax {
		return Complexity{}, ErrInvalidComplexity
	}
	return Complexity{value: v}, nil
}

// NormalizeComplexity clamps any raw rating into the valid range.
// Zero and negative ratings fall back to the default.
func NormalizeComplexity(v int) Complexity {
	if v < ComplexityMin {
		return Complexity{value: ComplexityDefault}
	}
	if v > ComplexityMax {
		return Complexity{value: ComplexityMax}
	}
	return Complexity{value: v}
}

// MustNewComplexity creates a Complexity or panics if invalid (use for constants only)
func MustNewComplexity(v int) Complexity {
	c, err := NewComplexity(v)
	if err != nil {
		panic(err)
	}
	return c
}

// Value returns the numeric rating
func (c Complexity) Value() int {
	return c.value
}

// String returns the string representation of the rating
func (c Complexity) String() string {
	return strconv.Itoa(c.value)
}

// Equals checks if two ratings are equal
func (c Complexity) Equals(other Complexity) bool {
	return c.value == other.value
}

// IsCritical returns true for ratings that demand priority handling
func (c Complexity) IsCritical() bool {
	return c.value >= complexityCriticalThreshold
}

// LoadPoints returns the workload points a delivery of this rating carries
func (c Complexity) LoadPoints() int {
	if c.IsCritical() {
		return c.value * 2
	}
	return c.value
}

// MarshalText implements encoding.TextMarshaler for JSON/BSON serialization
func (c Complexity) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(c.value)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON/BSON deserialization
func (c *Complexity) UnmarshalText(text []byte) error {
	v, err := strconv.Atoi(string(text))
	if err != nil {
		return ErrInvalidComplexity
	}
	complexity, err := NewComplexity(v)
	if err != nil {
		return err
	}
	*c = complexity
	return nil
}
