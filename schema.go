package rediswork

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StructTag is the struct tag key read by SchemaFor.
//
//	type Person struct {
//	    Id    int    `rw:"key"`
//	    Ref   string `rw:"altkey"`
//	    Name  string
//	    Cache []byte `rw:"-"`
//	}
const StructTag = "rw"

// Kind is the storage kind of a mapped field.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindList
	KindNested
)

var kindNames = map[Kind]string{
	KindString:  "string",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindDecimal: "decimal",
	KindList:    "list",
	KindNested:  "nested",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsNumeric reports whether fields of this kind are indexed as NUMERIC.
func (k Kind) IsNumeric() bool {
	return k == KindBool || k == KindInt || k == KindFloat
}

// IsScalar reports whether k can be a list element or a key field.
func (k Kind) IsScalar() bool {
	switch k {
	case KindString, KindBool, KindInt, KindFloat, KindDecimal:
		return true
	}
	return false
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, WithContext(ErrConfiguration, map[string]interface{}{
		"kind":   s,
		"reason": "unknown field kind",
	})
}

// Field describes one mapped field of an entity.
type Field struct {
	Name     string
	Kind     Kind
	ElemKind Kind // element kind for KindList
	Nullable bool // *string fields
	Key      bool
	KeyOrder int
	AltKey   bool

	index int
	typ   reflect.Type
}

// Tagged reports whether the field carries a tag triple.
func (f *Field) Tagged() bool {
	return f.Kind == KindString && !f.AltKey
}

// Indexed reports whether the field appears in the index schema.
func (f *Field) Indexed() bool {
	return f.Kind != KindNested
}

// Schema is the immutable descriptor of an entity type, built once at registration.
type Schema struct {
	typeName string
	goType   reflect.Type
	fields   []*Field
	byName   map[string]*Field
	keys     []*Field
	altKey   *Field
}

// SchemaOption customizes schema construction.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	typeName string
}

// WithTypeName overrides the type name used for keys and the index name.
// The default is the Go package path and type name joined with a dot.
func WithTypeName(name string) SchemaOption {
	return func(c *schemaConfig) {
		c.typeName = name
	}
}

// SchemaFor builds the schema of struct type T from its exported fields and rw tags.
func SchemaFor[T any](opts ...SchemaOption) (*Schema, error) {
	var zero T
	return schemaForType(reflect.TypeOf(zero), opts...)
}

func schemaForType(t reflect.Type, opts ...SchemaOption) (*Schema, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, WithContext(ErrConfiguration, map[string]interface{}{
			"type":   fmt.Sprint(t),
			"reason": "entity must be a struct type",
		})
	}

	cfg := schemaConfig{typeName: defaultTypeName(t)}
	for _, opt := range opts {
		opt(&cfg)
	}

	var fields []*Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get(StructTag)
		if tag == "-" {
			continue
		}

		kind, elem, nullable, err := resolveKind(sf.Type)
		if err != nil {
			return nil, WithContext(ErrMapping, map[string]interface{}{
				"type":   cfg.typeName,
				"field":  sf.Name,
				"go":     sf.Type.String(),
				"reason": err.Error(),
			})
		}

		f := &Field{
			Name:     sf.Name,
			Kind:     kind,
			ElemKind: elem,
			Nullable: nullable,
			index:    i,
			typ:      sf.Type,
		}
		if err := applyFieldTag(f, tag); err != nil {
			return nil, WithContext(ErrConfiguration, map[string]interface{}{
				"type":   cfg.typeName,
				"field":  sf.Name,
				"tag":    tag,
				"reason": err.Error(),
			})
		}
		fields = append(fields, f)
	}

	s, err := buildSchema(cfg.typeName, fields)
	if err != nil {
		return nil, err
	}
	s.goType = t
	return s, nil
}

func applyFieldTag(f *Field, tag string) error {
	if tag == "" {
		return nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "key":
			f.Key = true
		case strings.HasPrefix(part, "key="):
			order, err := strconv.Atoi(strings.TrimPrefix(part, "key="))
			if err != nil {
				return fmt.Errorf("invalid key order %q", part)
			}
			f.Key = true
			f.KeyOrder = order
		case part == "altkey":
			f.AltKey = true
		case part == "":
		default:
			return fmt.Errorf("unknown option %q", part)
		}
	}
	return nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// resolveKind maps a Go type onto a storage kind.
func resolveKind(t reflect.Type) (kind Kind, elem Kind, nullable bool, err error) {
	switch t {
	case decimalType:
		return KindDecimal, KindInvalid, false, nil
	case timeType:
		return KindNested, KindInvalid, false, nil
	}

	switch t.Kind() {
	case reflect.String:
		return KindString, KindInvalid, false, nil
	case reflect.Bool:
		return KindBool, KindInvalid, false, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, KindInvalid, false, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, KindInvalid, false, nil
	case reflect.Ptr:
		switch {
		case t.Elem().Kind() == reflect.String:
			return KindString, KindInvalid, true, nil
		case t.Elem().Kind() == reflect.Struct:
			return KindNested, KindInvalid, false, nil
		}
		return KindInvalid, KindInvalid, false, fmt.Errorf("unsupported pointer type %s", t)
	case reflect.Slice:
		ek, _, en, eerr := resolveKind(t.Elem())
		if eerr == nil && ek.IsScalar() && !en {
			return KindList, ek, false, nil
		}
		return KindNested, KindInvalid, false, nil
	case reflect.Struct, reflect.Map, reflect.Array:
		return KindNested, KindInvalid, false, nil
	}
	return KindInvalid, KindInvalid, false, fmt.Errorf("unsupported field type %s", t)
}

func defaultTypeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// FieldDefinition declares one field for NewSchema.
type FieldDefinition struct {
	Name     string
	Kind     Kind
	ElemKind Kind
	Nullable bool
	Key      bool
	KeyOrder int
	AltKey   bool
}

// SchemaDefinition declares a schema without a Go type.
type SchemaDefinition struct {
	TypeName string
	Fields   []FieldDefinition
}

// NewSchema builds a schema from an explicit definition. Schemas built this way
// drive index management and untyped queries but cannot back a Rediset.
func NewSchema(def SchemaDefinition) (*Schema, error) {
	if strings.TrimSpace(def.TypeName) == "" {
		return nil, WithContext(ErrConfiguration, map[string]interface{}{
			"reason": "type name is required",
		})
	}

	fields := make([]*Field, 0, len(def.Fields))
	for i, fd := range def.Fields {
		if fd.Name == "" {
			return nil, WithContext(ErrConfiguration, map[string]interface{}{
				"type":   def.TypeName,
				"index":  i,
				"reason": "field name is required",
			})
		}
		if fd.Kind == KindInvalid || (fd.Kind == KindList && !fd.ElemKind.IsScalar()) {
			return nil, WithContext(ErrMapping, map[string]interface{}{
				"type":   def.TypeName,
				"field":  fd.Name,
				"reason": "unsupported field kind",
			})
		}
		fields = append(fields, &Field{
			Name:     fd.Name,
			Kind:     fd.Kind,
			ElemKind: fd.ElemKind,
			Nullable: fd.Nullable && fd.Kind == KindString,
			Key:      fd.Key,
			KeyOrder: fd.KeyOrder,
			AltKey:   fd.AltKey,
			index:    -1,
		})
	}
	return buildSchema(def.TypeName, fields)
}

func buildSchema(typeName string, fields []*Field) (*Schema, error) {
	if strings.ContainsAny(typeName, "[]") {
		return nil, WithContext(ErrConfiguration, map[string]interface{}{
			"type":   typeName,
			"reason": "type name must not contain brackets",
		})
	}
	s := &Schema{
		typeName: typeName,
		fields:   fields,
		byName:   make(map[string]*Field, len(fields)),
	}

	for _, f := range fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, WithContext(ErrConfiguration, map[string]interface{}{
				"type":   typeName,
				"field":  f.Name,
				"reason": "duplicate field name",
			})
		}
		s.byName[f.Name] = f

		if f.AltKey {
			if s.altKey != nil {
				return nil, WithContext(ErrConfiguration, map[string]interface{}{
					"type":   typeName,
					"fields": []string{s.altKey.Name, f.Name},
					"reason": "more than one alternate key field",
				})
			}
			if f.Kind != KindString || f.Nullable {
				return nil, WithContext(ErrConfiguration, map[string]interface{}{
					"type":   typeName,
					"field":  f.Name,
					"kind":   f.Kind.String(),
					"reason": "alternate key must be a string",
				})
			}
			s.altKey = f
		}

		if f.Key {
			if !f.Kind.IsScalar() || f.Nullable {
				return nil, WithContext(ErrConfiguration, map[string]interface{}{
					"type":   typeName,
					"field":  f.Name,
					"kind":   f.Kind.String(),
					"reason": "key field must be a non-nullable scalar",
				})
			}
			s.keys = append(s.keys, f)
		}
	}

	if len(s.keys) == 0 {
		return nil, WithContext(ErrConfiguration, map[string]interface{}{
			"type":   typeName,
			"reason": "no key field declared",
		})
	}

	sort.SliceStable(s.keys, func(i, j int) bool {
		return s.keys[i].KeyOrder < s.keys[j].KeyOrder
	})
	return s, nil
}

// TypeName returns the namespace used in keys and the index name.
func (s *Schema) TypeName() string { return s.typeName }

// Type returns the Go type the schema was built from, or nil for NewSchema schemas.
func (s *Schema) Type() reflect.Type { return s.goType }

// KeyFields returns the key fields ordered by key order, then declaration.
func (s *Schema) KeyFields() []*Field {
	out := make([]*Field, len(s.keys))
	copy(out, s.keys)
	return out
}

// AlternateKeyField returns the alternate key field, if one is declared.
func (s *Schema) AlternateKeyField() (*Field, bool) {
	return s.altKey, s.altKey != nil
}

// MappedFields returns all non-ignored fields in declaration order.
func (s *Schema) MappedFields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the names of all mapped fields in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a mapped field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// IndexName returns the search index name for the entity type.
func (s *Schema) IndexName() string { return s.typeName + "_idx" }

// KeyPrefix returns the prefix shared by every document key of the entity type.
// It ends at the first key field bracket so a type named T_X never falls under T.
func (s *Schema) KeyPrefix() string { return s.KeyBuilder().Prefix() }

// KeyBuilder returns the key builder for the entity type.
func (s *Schema) KeyBuilder() KeyBuilder {
	names := make([]string, len(s.keys))
	for i, f := range s.keys {
		names[i] = f.Name
	}
	return KeyBuilder{TypeName: s.typeName, Fields: names}
}
