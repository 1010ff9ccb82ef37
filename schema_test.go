package rediswork

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type testAddress struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

type testPerson struct {
	Id      int    `rw:"key"`
	Ref     string `rw:"altkey"`
	Name    string
	Nick    *string
	Age     int
	Score   float64
	Active  bool
	Balance decimal.Decimal
	Tags    []string
	Lucky   []int
	Address *testAddress
	Meta    map[string]string
	Born    time.Time
	Scratch string `rw:"-"`
	secret  string
}

type testOrder struct {
	Number   int    `rw:"key=2"`
	Customer string `rw:"key=1"`
	Total    float64
	Lines    []testAddress
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[testPerson](WithTypeName("Person"))
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	if s.TypeName() != "Person" {
		t.Errorf("TypeName = %q", s.TypeName())
	}
	if s.IndexName() != "Person_idx" {
		t.Errorf("IndexName = %q", s.IndexName())
	}
	if s.KeyPrefix() != "Person_[" {
		t.Errorf("KeyPrefix = %q", s.KeyPrefix())
	}

	wantKinds := map[string]Kind{
		"Id":      KindInt,
		"Ref":     KindString,
		"Name":    KindString,
		"Nick":    KindString,
		"Age":     KindInt,
		"Score":   KindFloat,
		"Active":  KindBool,
		"Balance": KindDecimal,
		"Tags":    KindList,
		"Lucky":   KindList,
		"Address": KindNested,
		"Meta":    KindNested,
		"Born":    KindNested,
	}
	if len(s.MappedFields()) != len(wantKinds) {
		t.Fatalf("mapped %d fields, want %d: %v", len(s.MappedFields()), len(wantKinds), s.FieldNames())
	}
	for name, kind := range wantKinds {
		f, ok := s.Field(name)
		if !ok {
			t.Errorf("field %s missing", name)
			continue
		}
		if f.Kind != kind {
			t.Errorf("field %s kind = %v, want %v", name, f.Kind, kind)
		}
	}

	if _, ok := s.Field("Scratch"); ok {
		t.Error("ignored field should not be mapped")
	}
	if _, ok := s.Field("secret"); ok {
		t.Error("unexported field should not be mapped")
	}

	nick, _ := s.Field("Nick")
	if !nick.Nullable {
		t.Error("*string should be nullable")
	}
	tags, _ := s.Field("Tags")
	if tags.ElemKind != KindString {
		t.Errorf("Tags element kind = %v", tags.ElemKind)
	}
	lucky, _ := s.Field("Lucky")
	if lucky.ElemKind != KindInt {
		t.Errorf("Lucky element kind = %v", lucky.ElemKind)
	}

	alt, ok := s.AlternateKeyField()
	if !ok || alt.Name != "Ref" {
		t.Errorf("alternate key = %v, %v", alt, ok)
	}
	if alt.Tagged() {
		t.Error("alternate key must not be tagged")
	}
	name, _ := s.Field("Name")
	if !name.Tagged() {
		t.Error("string field should be tagged")
	}
}

func TestSchemaForDefaultTypeName(t *testing.T) {
	s, err := SchemaFor[testPerson]()
	if err != nil {
		t.Fatal(err)
	}
	if s.TypeName() != "github.com/adrianmcphee/rediswork.testPerson" {
		t.Errorf("TypeName = %q", s.TypeName())
	}
}

func TestSchemaKeyPrefixSeparatesTypes(t *testing.T) {
	person, err := SchemaFor[testPerson](WithTypeName("app.Person"))
	if err != nil {
		t.Fatal(err)
	}
	archive, err := SchemaFor[testPerson](WithTypeName("app.Person_Archive"))
	if err != nil {
		t.Fatal(err)
	}

	personKey := person.KeyBuilder().MustKey(1)
	archiveKey := archive.KeyBuilder().MustKey(1)

	if !strings.HasPrefix(personKey, person.KeyPrefix()) {
		t.Errorf("%q does not start with its own prefix %q", personKey, person.KeyPrefix())
	}
	if !strings.HasPrefix(archiveKey, archive.KeyPrefix()) {
		t.Errorf("%q does not start with its own prefix %q", archiveKey, archive.KeyPrefix())
	}
	if strings.HasPrefix(archiveKey, person.KeyPrefix()) {
		t.Errorf("%q falls under the %s index prefix %q", archiveKey, person.IndexName(), person.KeyPrefix())
	}
	if strings.HasPrefix(personKey, archive.KeyPrefix()) {
		t.Errorf("%q falls under the %s index prefix %q", personKey, archive.IndexName(), archive.KeyPrefix())
	}

	args := strings.Join(IndexDefinitionArgs(person), " ")
	if !strings.Contains(args, "PREFIX 1 app.Person_[ ") {
		t.Errorf("index definition prefix: %s", args)
	}
}

func TestSchemaKeyOrder(t *testing.T) {
	s, err := SchemaFor[testOrder](WithTypeName("Order"))
	if err != nil {
		t.Fatal(err)
	}

	keys := s.KeyFields()
	if len(keys) != 2 || keys[0].Name != "Customer" || keys[1].Name != "Number" {
		t.Fatalf("key order = %v", keys)
	}
	if _, ok := s.AlternateKeyField(); ok {
		t.Error("no alternate key declared")
	}
	lines, _ := s.Field("Lines")
	if lines.Kind != KindNested {
		t.Errorf("slice of structs kind = %v, want nested", lines.Kind)
	}
}

func TestSchemaValidation(t *testing.T) {
	type twoAltKeys struct {
		Id int    `rw:"key"`
		A  string `rw:"altkey"`
		B  string `rw:"altkey"`
	}
	type intAltKey struct {
		Id  int `rw:"key"`
		Alt int `rw:"altkey"`
	}
	type pointerAltKey struct {
		Id  int     `rw:"key"`
		Alt *string `rw:"altkey"`
	}
	type noKey struct {
		Name string
	}
	type listKey struct {
		Ids []int `rw:"key"`
	}
	type badOrder struct {
		Id int `rw:"key=first"`
	}
	type unknownOption struct {
		Id int `rw:"primary"`
	}
	type chanField struct {
		Id int `rw:"key"`
		C  chan int
	}
	type funcField struct {
		Id int `rw:"key"`
		F  func()
	}
	type ifaceField struct {
		Id int `rw:"key"`
		V  interface{}
	}
	type intPointer struct {
		Id  int `rw:"key"`
		Age *int
	}
	type complexField struct {
		Id int `rw:"key"`
		C  complex128
	}

	tests := []struct {
		name          string
		build         func() error
		configuration bool
		mapping       bool
	}{
		{"two alternate keys", func() error { _, err := SchemaFor[twoAltKeys](); return err }, true, false},
		{"int alternate key", func() error { _, err := SchemaFor[intAltKey](); return err }, true, false},
		{"pointer alternate key", func() error { _, err := SchemaFor[pointerAltKey](); return err }, true, false},
		{"no key", func() error { _, err := SchemaFor[noKey](); return err }, true, false},
		{"list key", func() error { _, err := SchemaFor[listKey](); return err }, true, false},
		{"bad key order", func() error { _, err := SchemaFor[badOrder](); return err }, true, false},
		{"unknown option", func() error { _, err := SchemaFor[unknownOption](); return err }, true, false},
		{"chan", func() error { _, err := SchemaFor[chanField](); return err }, false, true},
		{"func", func() error { _, err := SchemaFor[funcField](); return err }, false, true},
		{"interface", func() error { _, err := SchemaFor[ifaceField](); return err }, false, true},
		{"pointer to int", func() error { _, err := SchemaFor[intPointer](); return err }, false, true},
		{"complex", func() error { _, err := SchemaFor[complexField](); return err }, false, true},
		{"not a struct", func() error { _, err := SchemaFor[int](); return err }, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("expected error")
			}
			if IsConfiguration(err) != tt.configuration {
				t.Errorf("IsConfiguration = %v for %v", IsConfiguration(err), err)
			}
			if IsMapping(err) != tt.mapping {
				t.Errorf("IsMapping = %v for %v", IsMapping(err), err)
			}
		})
	}
}

func TestNewSchema(t *testing.T) {
	s, err := NewSchema(SchemaDefinition{
		TypeName: "Person",
		Fields: []FieldDefinition{
			{Name: "Id", Kind: KindInt, Key: true},
			{Name: "Name", Kind: KindString},
			{Name: "Tags", Kind: KindList, ElemKind: KindString},
		},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.Type() != nil {
		t.Error("definition schemas have no Go type")
	}
	if got := s.KeyBuilder().MustKey(1); got != "Person_[Id]_1" {
		t.Errorf("key = %q", got)
	}

	_, err = NewSchema(SchemaDefinition{TypeName: "X", Fields: []FieldDefinition{{Name: "Id", Kind: KindInt}}})
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error without key, got %v", err)
	}

	_, err = NewSchema(SchemaDefinition{TypeName: "X", Fields: []FieldDefinition{
		{Name: "Id", Kind: KindInt, Key: true},
		{Name: "Id", Kind: KindString},
	}})
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error for duplicate field, got %v", err)
	}

	_, err = NewSchema(SchemaDefinition{TypeName: "X", Fields: []FieldDefinition{
		{Name: "Id", Kind: KindInt, Key: true},
		{Name: "L", Kind: KindList},
	}})
	if !IsMapping(err) {
		t.Errorf("expected mapping error for list without element kind, got %v", err)
	}

	_, err = NewSchema(SchemaDefinition{})
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error without type name, got %v", err)
	}

	_, err = NewSchema(SchemaDefinition{TypeName: "Person_[Id]", Fields: []FieldDefinition{
		{Name: "Id", Kind: KindInt, Key: true},
	}})
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error for a bracketed type name, got %v", err)
	}
	if _, err := SchemaFor[testPerson](WithTypeName("app.Person[v2]")); !IsConfiguration(err) {
		t.Errorf("expected configuration error for a bracketed WithTypeName, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindString, KindBool, KindInt, KindFloat, KindDecimal, KindList, KindNested} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseKind(" Int "); err != nil || got != KindInt {
		t.Errorf("ParseKind is not case and space tolerant: %v, %v", got, err)
	}
	if _, err := ParseKind("blob"); !IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
