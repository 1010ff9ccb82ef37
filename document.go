package rediswork

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Document is the textual form of an entity: a key plus ordered field values.
// It holds no typed values, so it can be handed straight to a Gateway.
type Document struct {
	ID string

	names  []string
	values map[string]string
}

// NewDocument creates an empty document with the given key.
func NewDocument(id string) *Document {
	return &Document{ID: id, values: make(map[string]string)}
}

// DocumentFromMap creates a document from an unordered field map. Fields are
// ordered by name.
func DocumentFromMap(id string, fields map[string]string) *Document {
	doc := NewDocument(id)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Set(name, fields[name])
	}
	return doc
}

// Set stores a field value, keeping the position of an existing field.
func (d *Document) Set(name, value string) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = value
}

// Get returns a field value and whether it is present.
func (d *Document) Get(name string) (string, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Names returns the field names in insertion order.
func (d *Document) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of fields.
func (d *Document) Len() int { return len(d.names) }

// Map returns a copy of the field values.
func (d *Document) Map() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Row is one search or aggregate result: field name to stored text.
type Row map[string]string

// Mapper converts between entities of type T and documents.
type Mapper[T any] struct {
	schema *Schema
}

// NewMapper creates a mapper for T. The schema must have been built from T.
func NewMapper[T any](schema *Schema) (*Mapper[T], error) {
	var zero T
	if schema == nil || schema.goType == nil || schema.goType != reflect.TypeOf(zero) {
		return nil, WithContext(ErrConfiguration, map[string]interface{}{
			"type":   fmt.Sprintf("%T", zero),
			"reason": "schema was not built from this type",
		})
	}
	return &Mapper[T]{schema: schema}, nil
}

// Schema returns the schema the mapper uses.
func (m *Mapper[T]) Schema() *Schema { return m.schema }

// Key builds the key of an entity from its key fields.
func (m *Mapper[T]) Key(entity *T) (string, error) {
	if entity == nil {
		return "", mappingError("", "nil entity", nil)
	}
	return m.schema.entityKey(reflect.ValueOf(entity).Elem())
}

// ToDocument maps an entity to a document. When an alternate key is declared
// the generated key is written into it on the entity as well.
func (m *Mapper[T]) ToDocument(entity *T) (*Document, error) {
	if entity == nil {
		return nil, mappingError("", "nil entity", nil)
	}
	v := reflect.ValueOf(entity).Elem()

	key, err := m.schema.entityKey(v)
	if err != nil {
		return nil, err
	}
	if alt, ok := m.schema.AlternateKeyField(); ok {
		v.Field(alt.index).SetString(key)
	}

	doc := NewDocument(key)
	for _, f := range m.schema.fields {
		if err := encodeField(doc, f, v.Field(f.index)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// FromDocument maps a document back to a new entity.
func (m *Mapper[T]) FromDocument(doc *Document) (*T, error) {
	if doc == nil {
		return nil, mappingError("", "nil document", nil)
	}
	return m.decode(doc.Get)
}

// FromRow maps a result row back to a new entity.
func (m *Mapper[T]) FromRow(row Row) (*T, error) {
	return m.decode(func(name string) (string, bool) {
		v, ok := row[name]
		return v, ok
	})
}

func (m *Mapper[T]) decode(get func(string) (string, bool)) (*T, error) {
	entity := new(T)
	v := reflect.ValueOf(entity).Elem()
	for _, f := range m.schema.fields {
		raw, ok := get(f.Name)
		if !ok {
			continue
		}
		if err := decodeField(f, raw, v.Field(f.index)); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

func encodeField(doc *Document, f *Field, fv reflect.Value) error {
	switch f.Kind {
	case KindString:
		var s *string
		if f.Nullable {
			if !fv.IsNil() {
				str := fv.Elem().String()
				s = &str
			}
		} else {
			str := fv.String()
			s = &str
		}
		if s != nil {
			doc.Set(f.Name, *s)
		}
		if f.Tagged() {
			tags := EncodeTags(s)
			doc.Set(TagField(f.Name), tags.Tag)
			doc.Set(ReverseTagField(f.Name), tags.Reverse)
			doc.Set(SubsetTagField(f.Name), tags.Subset)
		}
		return nil

	case KindList:
		if fv.IsNil() {
			return nil
		}
		parts := make([]string, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			parts[i] = formatScalar(f.ElemKind, fv.Index(i))
			if strings.Contains(parts[i], TagSeparator) {
				return mappingError(f.Name, "list element contains the tag separator "+TagSeparator, nil)
			}
		}
		doc.Set(f.Name, strings.Join(parts, TagSeparator))
		return nil

	case KindNested:
		data, err := json.Marshal(fv.Interface())
		if err != nil {
			return mappingError(f.Name, "cannot encode nested value", err)
		}
		doc.Set(f.Name, string(data))
		return nil

	case KindBool, KindInt, KindFloat, KindDecimal:
		doc.Set(f.Name, formatScalar(f.Kind, fv))
		return nil
	}
	return mappingError(f.Name, "unsupported kind "+f.Kind.String(), nil)
}

func formatScalar(kind Kind, fv reflect.Value) string {
	switch kind {
	case KindString:
		return fv.String()
	case KindBool:
		if fv.Bool() {
			return "1"
		}
		return "0"
	case KindInt:
		if fv.CanInt() {
			return strconv.FormatInt(fv.Int(), 10)
		}
		return strconv.FormatUint(fv.Uint(), 10)
	case KindFloat:
		return strconv.FormatFloat(fv.Float(), 'g', -1, fv.Type().Bits())
	case KindDecimal:
		return fv.Interface().(decimal.Decimal).String()
	}
	return ""
}

func decodeField(f *Field, raw string, fv reflect.Value) error {
	switch f.Kind {
	case KindString:
		if f.Nullable {
			ptr := reflect.New(fv.Type().Elem())
			ptr.Elem().SetString(raw)
			fv.Set(ptr)
			return nil
		}
		fv.SetString(raw)
		return nil

	case KindList:
		items := []string{}
		if raw != "" {
			items = strings.Split(raw, TagSeparator)
		}
		list := reflect.MakeSlice(fv.Type(), len(items), len(items))
		for i, item := range items {
			if err := parseScalar(f.Name, f.ElemKind, item, list.Index(i)); err != nil {
				return err
			}
		}
		fv.Set(list)
		return nil

	case KindNested:
		target := reflect.New(fv.Type())
		if err := json.Unmarshal([]byte(raw), target.Interface()); err != nil {
			return mappingError(f.Name, "cannot decode nested value", err)
		}
		fv.Set(target.Elem())
		return nil

	case KindBool, KindInt, KindFloat, KindDecimal:
		return parseScalar(f.Name, f.Kind, raw, fv)
	}
	return mappingError(f.Name, "unsupported kind "+f.Kind.String(), nil)
}

func parseScalar(field string, kind Kind, raw string, fv reflect.Value) error {
	switch kind {
	case KindString:
		fv.SetString(raw)
	case KindBool:
		// Stored as 1/0; anything other than "1" reads as false.
		fv.SetBool(raw == "1")
	case KindInt:
		if fv.CanInt() {
			n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
			if err != nil {
				return mappingError(field, "invalid integer "+strconv.Quote(raw), err)
			}
			fv.SetInt(n)
			return nil
		}
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return mappingError(field, "invalid unsigned integer "+strconv.Quote(raw), err)
		}
		fv.SetUint(n)
	case KindFloat:
		n, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return mappingError(field, "invalid float "+strconv.Quote(raw), err)
		}
		fv.SetFloat(n)
	case KindDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return mappingError(field, "invalid decimal "+strconv.Quote(raw), err)
		}
		fv.Set(reflect.ValueOf(d))
	default:
		return mappingError(field, "unsupported kind "+kind.String(), nil)
	}
	return nil
}

// DocumentFromRow rebuilds the stored document of a result row without a Go
// type: the key comes from the key fields, the alternate key is rewritten and
// the tag triples are derived again. Used where only a Schema is known.
func (s *Schema) DocumentFromRow(row Row) (*Document, error) {
	values := make([]interface{}, len(s.keys))
	for i, f := range s.keys {
		raw, ok := row[f.Name]
		if !ok {
			return nil, mappingError(f.Name, "row has no value for key field", nil)
		}
		if f.Kind == KindBool {
			values[i] = raw == "1"
			continue
		}
		values[i] = raw
	}
	key, err := s.KeyBuilder().Key(values...)
	if err != nil {
		return nil, err
	}

	doc := NewDocument(key)
	for _, f := range s.fields {
		if f.AltKey {
			doc.Set(f.Name, key)
			continue
		}
		raw, ok := row[f.Name]
		if ok {
			doc.Set(f.Name, raw)
		}
		if f.Tagged() {
			var value *string
			if ok || !f.Nullable {
				value = &raw
			}
			tags := EncodeTags(value)
			doc.Set(TagField(f.Name), tags.Tag)
			doc.Set(ReverseTagField(f.Name), tags.Reverse)
			doc.Set(SubsetTagField(f.Name), tags.Subset)
		}
	}
	return doc, nil
}
