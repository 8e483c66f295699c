package raster

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Ordering keys accepted for the plain index ordering.
const (
	OrderByIndex = "index"
	OrderByGID   = "gid"
)

// IsIndexOrdering reports whether orderBy selects ordering by cell index.
// The empty string defaults to index ordering.
func IsIndexOrdering(orderBy string) bool {
	switch strings.TrimSpace(orderBy) {
	case "", OrderByIndex, OrderByGID:
		return true
	}
	return false
}

// OrderKey is a comparable attribute value used to order cells.
// Numbers sort before strings; numbers compare numerically, strings
// lexically.
type OrderKey struct {
	num      float64
	str      string
	isString bool
}

// NumberKey returns a numeric OrderKey.
func NumberKey(v float64) OrderKey {
	return OrderKey{num: v}
}

// StringKey returns a string OrderKey.
func StringKey(s string) OrderKey {
	return OrderKey{str: s, isString: true}
}

// KeyOf converts a decoded attribute value into an OrderKey.
// Accepts numbers, strings and booleans (false < true).
func KeyOf(v any) (OrderKey, error) {
	switch val := v.(type) {
	case float64:
		return NumberKey(val), nil
	case float32:
		return NumberKey(float64(val)), nil
	case int:
		return NumberKey(float64(val)), nil
	case int64:
		return NumberKey(float64(val)), nil
	case string:
		return StringKey(val), nil
	case bool:
		if val {
			return NumberKey(1), nil
		}
		return NumberKey(0), nil
	case nil:
		return OrderKey{}, fmt.Errorf("attribute value is null")
	default:
		return OrderKey{}, fmt.Errorf("attribute value of type %T is not orderable", v)
	}
}

// Compare returns -1, 0 or +1.
func (k OrderKey) Compare(o OrderKey) int {
	switch {
	case k.isString && o.isString:
		return strings.Compare(k.str, o.str)
	case k.isString:
		return 1
	case o.isString:
		return -1
	default:
		return cmp.Compare(k.num, o.num)
	}
}

func (k OrderKey) String() string {
	if k.isString {
		return k.str
	}
	return strconv.FormatFloat(k.num, 'g', -1, 64)
}

// AttributeLookup resolves a cell attribute used for ordering.
type AttributeLookup interface {
	Lookup(cellIndex int, attribute string) (OrderKey, error)
}

// LookupFunc adapts a function to AttributeLookup.
type LookupFunc func(cellIndex int, attribute string) (OrderKey, error)

// Lookup calls f.
func (f LookupFunc) Lookup(cellIndex int, attribute string) (OrderKey, error) {
	return f(cellIndex, attribute)
}
