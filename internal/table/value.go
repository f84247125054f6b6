package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the declared type of a column.
type Type string

const (
	TypeString Type = "string"
	TypeNumber Type = "number"
	TypeBool   Type = "bool"
)

type kind uint8

const (
	kindNull kind = iota
	kindString
	kindNumber
	kindBool
)

// Value is a nullable typed cell.
type Value struct {
	k kind
	s string
	n float64
	b bool
}

// Null is the missing value.
func Null() Value { return Value{} }

// Str returns a string value; blank strings are null.
func Str(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{k: kindString, s: s}
}

// Num returns a number value.
func Num(f float64) Value { return Value{k: kindNumber, n: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{k: kindBool, b: b} }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.k == kindNull }

// Type returns the value's type; null has none.
func (v Value) Type() Type {
	switch v.k {
	case kindString:
		return TypeString
	case kindNumber:
		return TypeNumber
	case kindBool:
		return TypeBool
	}
	return ""
}

// Text returns the string payload, or "" for non-strings.
func (v Value) Text() string {
	if v.k == kindString {
		return v.s
	}
	return ""
}

// Float returns the number payload.
func (v Value) Float() (float64, bool) {
	return v.n, v.k == kindNumber
}

// Truth returns the boolean payload.
func (v Value) Truth() (bool, bool) {
	return v.b, v.k == kindBool
}

// String renders the value the way it is written to CSV.
func (v Value) String() string {
	switch v.k {
	case kindString:
		return v.s
	case kindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Parse reads a CSV cell as typ. Empty cells are null.
func Parse(cell string, typ Type) (Value, error) {
	if cell == "" {
		return Null(), nil
	}
	switch typ {
	case TypeNumber:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Null(), fmt.Errorf("parse number %q: %w", cell, err)
		}
		return Num(f), nil
	case TypeBool:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return Null(), fmt.Errorf("parse bool %q: %w", cell, err)
		}
		return Bool(b), nil
	}
	return Str(cell), nil
}
