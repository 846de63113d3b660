package utils

import (
	"fmt"
	"reflect"
)

// ToStringSlice converts any slice or array into a slice of strings using fmt formatting.
// The second return value is false when v is not a slice or array.
func ToStringSlice(v any) ([]string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// []byte is a scalar for query purposes
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	stringSlice := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		stringSlice = append(stringSlice, fmt.Sprint(rv.Index(i).Interface()))
	}
	return stringSlice, true
}

// Indirect dereferences pointers until a non-pointer value is reached.
// A nil pointer yields nil.
func Indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
