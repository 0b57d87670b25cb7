package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a normalized 24-bit RGB color. Hex is always of the form "#rrggbb" in lower case and Int holds
// the same value as an integer.
type Color struct {
	Hex string
	Int uint32
}

// ErrInvalidColor is returned by ParseColor when the value is not a recognizable 24-bit color.
var ErrInvalidColor = errors.New("invalid color")

// DefaultColor is the accent used when a persona arrives with a color that cannot be parsed.
var DefaultColor = NewColor(0xff0000)

const maxColor = 0xffffff

// NewColor builds a Color from its integer form. Bits above 24 are discarded.
func NewColor(v uint32) Color {
	v &= maxColor
	return Color{
		Hex: fmt.Sprintf("#%06x", v),
		Int: v,
	}
}

// ParseColor normalizes a color received from the backend or from configuration. Strings may be written
// as "#rrggbb", "#rgb", "0xrrggbb" or bare "rrggbb". Numbers may be any Go integer or float type, or a
// json.Number, as long as they hold a whole value in the 24-bit range.
func ParseColor(v any) (Color, error) {
	switch c := v.(type) {
	case Color:
		return c, nil
	case string:
		return parseColorString(c)
	case json.Number:
		if i, err := c.Int64(); err == nil {
			return colorFromInt(i)
		}
		f, err := c.Float64()
		if err != nil {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, c.String())
		}
		return colorFromFloat(f)
	case int:
		return colorFromInt(int64(c))
	case int32:
		return colorFromInt(int64(c))
	case int64:
		return colorFromInt(c)
	case uint:
		return colorFromUint(uint64(c))
	case uint32:
		return colorFromUint(uint64(c))
	case uint64:
		return colorFromUint(c)
	case float32:
		return colorFromFloat(float64(c))
	case float64:
		return colorFromFloat(c)
	default:
		return Color{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidColor, v)
	}
}

// NormalizeColor is ParseColor with DefaultColor as the fallback.
func NormalizeColor(v any) Color {
	c, err := ParseColor(v)
	if err != nil {
		return DefaultColor
	}
	return c
}

func parseColorString(s string) (Color, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(raw, "#"):
		raw = raw[1:]
	case strings.HasPrefix(raw, "0x"):
		raw = raw[2:]
	}

	if len(raw) == 3 {
		raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	}
	if len(raw) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return NewColor(uint32(v)), nil
}

func colorFromInt(v int64) (Color, error) {
	if v < 0 || v > maxColor {
		return Color{}, fmt.Errorf("%w: %d out of range", ErrInvalidColor, v)
	}
	return NewColor(uint32(v)), nil
}

func colorFromUint(v uint64) (Color, error) {
	if v > maxColor {
		return Color{}, fmt.Errorf("%w: %d out of range", ErrInvalidColor, v)
	}
	return NewColor(uint32(v)), nil
}

func colorFromFloat(f float64) (Color, error) {
	if math.IsNaN(f) || f != math.Trunc(f) {
		return Color{}, fmt.Errorf("%w: %v is not a whole number", ErrInvalidColor, f)
	}
	return colorFromInt(int64(f))
}
