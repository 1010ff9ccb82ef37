package rediswork

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MinPrefixLength is the shortest needle a tag prefix clause may carry. The
// server expands shorter prefixes to nothing (its MINPREFIX default is 2).
const MinPrefixLength = 2

// Compiler turns predicates into RediSearch filter strings and validates sort
// keys. A compiler with a schema checks field names and kinds; without one it
// dispatches on the Go type of each constant.
type Compiler struct {
	schema *Schema
}

// NewCompiler creates a compiler bound to schema. schema may be nil.
func NewCompiler(schema *Schema) *Compiler {
	return &Compiler{schema: schema}
}

// Compile compiles p without schema checks.
func Compile(p Predicate) (string, error) {
	return NewCompiler(nil).Compile(p)
}

// Compile compiles p into a filter string. It never returns partial output.
func (c *Compiler) Compile(p Predicate) (string, error) {
	switch n := p.(type) {
	case nil:
		return "", unsupported("nil predicate", nil)

	case AndExpr:
		return c.binary(n.Left, n.Right, " ")
	case *AndExpr:
		return c.binary(n.Left, n.Right, " ")

	case OrExpr:
		return c.binary(n.Left, n.Right, "|")
	case *OrExpr:
		return c.binary(n.Left, n.Right, "|")

	case NotExpr:
		return c.not(n.Inner)
	case *NotExpr:
		return c.not(n.Inner)

	case CompareExpr:
		return c.compare(n)
	case *CompareExpr:
		return c.compare(*n)

	case StartsWithExpr:
		return c.startsWith(n.Field, n.Value)
	case *StartsWithExpr:
		return c.startsWith(n.Field, n.Value)

	case EndsWithExpr:
		return c.endsWith(n.Field, n.Value)
	case *EndsWithExpr:
		return c.endsWith(n.Field, n.Value)

	case ContainsExpr:
		return c.contains(n.Field, n.Value)
	case *ContainsExpr:
		return c.contains(n.Field, n.Value)

	case InExpr:
		return c.in(n.Field, n.Values)
	case *InExpr:
		return c.in(n.Field, n.Values)
	}
	return "", unsupported("unknown predicate node", map[string]interface{}{
		"node": fmt.Sprintf("%T", p),
	})
}

// CompileSort validates sort keys against the schema and returns them unchanged.
func (c *Compiler) CompileSort(keys ...SortKey) ([]SortKey, error) {
	out := make([]SortKey, 0, len(keys))
	for _, k := range keys {
		f, err := c.field(k.Field)
		if err != nil {
			return nil, err
		}
		if f != nil && (f.Kind == KindList || f.Kind == KindNested) {
			return nil, unsupported("field is not sortable", map[string]interface{}{
				"field": k.Field,
				"kind":  f.Kind.String(),
			})
		}
		out = append(out, k)
	}
	return out, nil
}

func (c *Compiler) binary(left, right Predicate, sep string) (string, error) {
	l, err := c.Compile(left)
	if err != nil {
		return "", err
	}
	r, err := c.Compile(right)
	if err != nil {
		return "", err
	}
	return "(" + l + sep + r + ")", nil
}

func (c *Compiler) not(inner Predicate) (string, error) {
	switch n := inner.(type) {
	case NotExpr:
		return c.Compile(n.Inner)
	case *NotExpr:
		return c.Compile(n.Inner)
	}
	q, err := c.Compile(inner)
	if err != nil {
		return "", err
	}
	return "-" + q, nil
}

func (c *Compiler) compare(n CompareExpr) (string, error) {
	f, err := c.field(n.Field)
	if err != nil {
		return "", err
	}
	v, err := constantOf(n.Field, n.Value)
	if err != nil {
		return "", err
	}

	if v.isString {
		if err := requireTagged(f, n.Field, n.Op.String()); err != nil {
			return "", err
		}
		if err := requireNoSeparator(n.Field, v.text, n.Op.String()); err != nil {
			return "", err
		}
		clause := "@" + TagField(n.Field) + ":{" + EscapeTag(Tag(SentinelFor(&v.text))) + "}"
		switch n.Op {
		case OpEq:
			return "(" + clause + ")", nil
		case OpNe:
			return "(-" + clause + ")", nil
		}
		return "", unsupported("range comparison on a string", map[string]interface{}{
			"field": n.Field,
			"op":    n.Op.String(),
		})
	}

	if err := requireNumeric(f, n.Field, n.Op.String()); err != nil {
		return "", err
	}
	field := "@" + n.Field
	switch n.Op {
	case OpEq:
		return "(" + field + ":[" + v.text + " " + v.text + "])", nil
	case OpNe:
		return "(-" + field + ":[" + v.text + " " + v.text + "])", nil
	case OpGt:
		return "(" + field + ":[(" + v.text + " +inf])", nil
	case OpGte:
		return "(" + field + ":[" + v.text + " +inf])", nil
	case OpLt:
		return "(" + field + ":[-inf (" + v.text + "])", nil
	case OpLte:
		return "(" + field + ":[-inf " + v.text + "])", nil
	}
	return "", unsupported("unknown operator", map[string]interface{}{
		"field": n.Field,
		"op":    int(n.Op),
	})
}

func (c *Compiler) startsWith(name string, value interface{}) (string, error) {
	needle, err := c.needle(name, value, "StartsWith")
	if err != nil {
		return "", err
	}
	if err := requirePrefixLength(name, needle, "StartsWith"); err != nil {
		return "", err
	}
	return "(@" + TagField(name) + ":{" + EscapeTag(Tag(needle)) + "*})", nil
}

func (c *Compiler) endsWith(name string, value interface{}) (string, error) {
	needle, err := c.needle(name, value, "EndsWith")
	if err != nil {
		return "", err
	}
	if err := requirePrefixLength(name, needle, "EndsWith"); err != nil {
		return "", err
	}
	return "(@" + ReverseTagField(name) + ":{" + EscapeTag(reverseRunes(Tag(needle))) + "*})", nil
}

func (c *Compiler) contains(name string, value interface{}) (string, error) {
	needle, err := c.needle(name, value, "Contains")
	if err != nil {
		return "", err
	}
	tagged := Tag(needle)
	if utf8.RuneCountInString(tagged) >= MinSubsetLength {
		return "(@" + SubsetTagField(name) + ":{" + EscapeTag(tagged) + "})", nil
	}

	// No subset tag exists below the minimum length, so match it as a prefix of
	// a subset tag, of the whole value, or of the reversed value.
	if err := requirePrefixLength(name, tagged, "Contains"); err != nil {
		return "", err
	}
	prefix := EscapeTag(tagged)
	return "(@" + SubsetTagField(name) + ":{" + prefix + "*}" +
		"|@" + TagField(name) + ":{" + prefix + "*}" +
		"|@" + ReverseTagField(name) + ":{" + EscapeTag(reverseRunes(tagged)) + "*})", nil
}

func (c *Compiler) in(name string, values interface{}) (string, error) {
	f, err := c.field(name)
	if err != nil {
		return "", err
	}

	resolved, err := resolve(values)
	if err != nil {
		return "", err
	}
	rv := reflect.ValueOf(resolved)
	if resolved == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return "", unsupported("In requires a slice of constants", map[string]interface{}{
			"field": name,
			"type":  fmt.Sprintf("%T", resolved),
		})
	}
	if rv.Len() == 0 {
		return "", unsupported("In requires at least one value", map[string]interface{}{
			"field": name,
		})
	}

	consts := make([]constant, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := constantOf(name, rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		if i > 0 && v.isString != consts[0].isString {
			return "", unsupported("In mixes string and numeric values", map[string]interface{}{
				"field": name,
			})
		}
		consts[i] = v
	}

	if consts[0].isString {
		if err := requireTagged(f, name, "In"); err != nil {
			return "", err
		}
		alts := make([]string, len(consts))
		for i, v := range consts {
			if err := requireNoSeparator(name, v.text, "In"); err != nil {
				return "", err
			}
			alts[i] = EscapeTag(Tag(SentinelFor(&v.text)))
		}
		return "(@" + SubsetTagField(name) + ":{" + strings.Join(alts, "|") + "})", nil
	}

	if err := requireNumeric(f, name, "In"); err != nil {
		return "", err
	}
	clauses := make([]string, len(consts))
	for i, v := range consts {
		clauses[i] = "@" + name + ":[" + v.text + " " + v.text + "]"
	}
	return "(" + strings.Join(clauses, "|") + ")", nil
}

func (c *Compiler) needle(name string, value interface{}, op string) (string, error) {
	f, err := c.field(name)
	if err != nil {
		return "", err
	}
	if err := requireTagged(f, name, op); err != nil {
		return "", err
	}
	v, err := constantOf(name, value)
	if err != nil {
		return "", err
	}
	if !v.isString {
		return "", unsupported(op+" requires a string", map[string]interface{}{
			"field": name,
		})
	}
	if v.text == "" {
		return "", unsupported(op+" requires a non-empty value", map[string]interface{}{
			"field": name,
		})
	}
	if err := requireNoSeparator(name, v.text, op); err != nil {
		return "", err
	}
	return v.text, nil
}

// field resolves a field name against the schema. Without a schema it returns nil.
func (c *Compiler) field(name string) (*Field, error) {
	if name == "" {
		return nil, unsupported("empty field name", nil)
	}
	if c.schema == nil {
		return nil, nil
	}
	f, ok := c.schema.Field(name)
	if !ok {
		return nil, unsupported("unknown field", map[string]interface{}{
			"type":  c.schema.TypeName(),
			"field": name,
		})
	}
	if f.AltKey {
		return nil, unsupported("alternate key is not indexed", map[string]interface{}{
			"type":  c.schema.TypeName(),
			"field": name,
		})
	}
	return f, nil
}

func requireTagged(f *Field, name, op string) error {
	if f == nil || f.Tagged() {
		return nil
	}
	return unsupported("operator requires a string field", map[string]interface{}{
		"field": name,
		"op":    op,
		"kind":  f.Kind.String(),
	})
}

// requireNoSeparator rejects string constants the index splits into several
// tags; no clause on the derived tag fields can match them.
func requireNoSeparator(name, text, op string) error {
	if !strings.Contains(text, TagSeparator) {
		return nil
	}
	return unsupported("value contains the tag separator "+TagSeparator, map[string]interface{}{
		"field": name,
		"op":    op,
	})
}

func requirePrefixLength(name, needle, op string) error {
	if utf8.RuneCountInString(needle) >= MinPrefixLength {
		return nil
	}
	return unsupported("needle shorter than the minimum prefix length", map[string]interface{}{
		"field": name,
		"op":    op,
		"min":   MinPrefixLength,
	})
}

func requireNumeric(f *Field, name, op string) error {
	if f == nil || f.Kind.IsNumeric() {
		return nil
	}
	return unsupported("operator requires a numeric field", map[string]interface{}{
		"field": name,
		"op":    op,
		"kind":  f.Kind.String(),
	})
}

// constant is a resolved comparison value: raw text for strings, query text for numbers.
type constant struct {
	isString bool
	text     string
}

// resolve evaluates Deferred values and dereferences pointers.
func resolve(value interface{}) (interface{}, error) {
	if d, ok := value.(Deferred); ok {
		if d == nil {
			return nil, unsupported("nil deferred value", nil)
		}
		value = d()
	}
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	return rv.Interface(), nil
}

func constantOf(field string, value interface{}) (constant, error) {
	v, err := resolve(value)
	if err != nil {
		return constant{}, err
	}
	if v == nil {
		return constant{}, unsupported("comparison with nil", map[string]interface{}{
			"field": field,
		})
	}
	if _, ok := v.(decimal.Decimal); ok {
		return constant{}, unsupported("decimal fields are not range indexed", map[string]interface{}{
			"field": field,
		})
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return constant{isString: true, text: rv.String()}, nil
	case reflect.Bool:
		if rv.Bool() {
			return constant{text: "1"}, nil
		}
		return constant{text: "0"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return constant{text: strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return constant{text: strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return constant{}, unsupported("NaN is not comparable", map[string]interface{}{
				"field": field,
			})
		case math.IsInf(f, 1):
			return constant{text: "+inf"}, nil
		case math.IsInf(f, -1):
			return constant{text: "-inf"}, nil
		}
		return constant{text: strconv.FormatFloat(f, 'g', -1, rv.Type().Bits())}, nil
	}
	return constant{}, unsupported("unsupported constant type", map[string]interface{}{
		"field": field,
		"type":  fmt.Sprintf("%T", v),
	})
}
