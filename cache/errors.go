package cache

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidArgument is wrapped by every argument and construction error.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoLoader is returned by Loading.GetOrLoad when no loader was configured.
	ErrNoLoader = errors.New("cache: no loader provided")

	errNilKey   = fmt.Errorf("cache: %w: nil key", ErrInvalidArgument)
	errNilValue = fmt.Errorf("cache: %w: nil value", ErrInvalidArgument)
)

// ConfigError reports an invalid construction parameter.
// It unwraps to ErrInvalidArgument.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cache: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidArgument }

// isNil reports whether v holds no value: a nil interface, or a nil
// pointer, map, slice, chan or func.
func isNil[T any](v T) bool {
	a := any(v)
	if a == nil {
		return true
	}
	switch a.(type) {
	case string, int, int64, int32, uint, uint64, uint32, bool, float64:
		return false
	}
	switch reflect.TypeOf(a).Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func,
		reflect.UnsafePointer, reflect.Interface:
		return reflect.ValueOf(a).IsNil()
	}
	return false
}

func checkKey[K any](k K) error {
	if isNil(k) {
		return errNilKey
	}
	return nil
}

func checkEntry[K, V any](k K, v V) error {
	if isNil(k) {
		return errNilKey
	}
	if isNil(v) {
		return errNilValue
	}
	return nil
}
