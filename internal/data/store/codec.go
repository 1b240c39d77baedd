package store

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// GetJSON decodes key into v, which must be a non-nil pointer. A missing key or
// undecodable blob reports false and leaves v untouched; decode failures are
// logged and otherwise treated as absent.
func GetJSON(s Store, key string, v interface{}, log util.LoggerInterface) bool {
	data, ok := s.Get(key)
	if !ok || len(data) == 0 {
		return false
	}

	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		util.OrNop(log).Warn("decode target is not a pointer", util.Field{Key: "key", Value: key})
		return false
	}

	// Decode into a fresh value so a half-decoded blob never leaks into v.
	decoded := reflect.New(target.Elem().Type())
	if err := sonic.Unmarshal(data, decoded.Interface()); err != nil {
		util.OrNop(log).Warn("discarding undecodable blob",
			util.Field{Key: "key", Value: key},
			util.Field{Key: "error", Value: err})
		return false
	}
	target.Elem().Set(decoded.Elem())
	return true
}

// SetJSON encodes v under key.
func SetJSON(s Store, key string, v interface{}, durable bool) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, data, durable)
}
