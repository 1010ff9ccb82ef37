package rediswork

import (
	"fmt"
	"reflect"
	"strings"
)

// KeyBuilder builds document keys for one entity type.
// Eliminates hand-assembled key strings scattered through callers.
//
// Example:
//
//	kb := KeyBuilder{TypeName: "app.Person", Fields: []string{"Id"}}
//	key, _ := kb.Key(42)  // Returns "app.Person_[Id]_42"
type KeyBuilder struct {
	// TypeName namespaces the key so equal values of different types never collide
	TypeName string

	// Fields are the key field names in key order
	Fields []string
}

// Key builds the key from raw key values given in key order.
// Exactly one value per key field is required.
func (kb KeyBuilder) Key(values ...interface{}) (string, error) {
	if len(values) != len(kb.Fields) {
		return "", WithContext(ErrConfiguration, map[string]interface{}{
			"type":     kb.TypeName,
			"expected": len(kb.Fields),
			"got":      len(values),
			"reason":   "key value count does not match key fields",
		})
	}

	var b strings.Builder
	b.WriteString(kb.Prefix())
	for i, name := range kb.Fields {
		if i > 0 {
			b.WriteString("|[")
		}
		b.WriteString(name)
		b.WriteString("]_")
		b.WriteString(formatKeyValue(values[i]))
	}
	return b.String(), nil
}

// MustKey is like Key but panics on a value count mismatch.
func (kb KeyBuilder) MustKey(values ...interface{}) string {
	key, err := kb.Key(values...)
	if err != nil {
		panic(err)
	}
	return key
}

// Prefix returns the prefix every key of this type starts with, up to and
// including the bracket opening the first key field.
func (kb KeyBuilder) Prefix() string {
	return kb.TypeName + "_["
}

// formatKeyValue renders a key value after dereferencing pointers. nil renders empty.
func formatKeyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface())
}

// entityKey builds the key of a struct value from its key fields.
func (s *Schema) entityKey(v reflect.Value) (string, error) {
	values := make([]interface{}, len(s.keys))
	for i, f := range s.keys {
		values[i] = v.Field(f.index).Interface()
	}
	return s.KeyBuilder().Key(values...)
}
