package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the values canonical JSON accepts.
// There is no float and no null: absent columns are omitted instead.
type Value interface {
	canonicalValue()
}

// Str is a string value.
type Str string

func (Str) canonicalValue() {}

// Int is an integer value.
type Int int64

func (Int) canonicalValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) canonicalValue() {}

// List is an ordered list of values.
type List []Value

func (List) canonicalValue() {}

// Object maps keys to values. Use SortedKeys for iteration.
type Object map[string]Value

func (Object) canonicalValue() {}

// SetOptional stores *n under key when n is non-nil.
func (obj Object) SetOptional(key string, n *int64) {
	if n != nil {
		obj[key] = Int(*n)
	}
}

// SortedKeys returns keys ordered by UTF-16 code units (RFC 8785).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units; plain string
// comparison orders by UTF-8 bytes, which differs above the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
