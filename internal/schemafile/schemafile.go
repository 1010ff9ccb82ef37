// Package schemafile loads rediswork schemas from YAML files.
//
// A schema file lists entity types and their fields in declaration order:
//
//	types:
//	  - name: Person
//	    fields:
//	      - {name: Id, kind: int, key: true}
//	      - {name: Ref, kind: string, altkey: true}
//	      - {name: Name, kind: string}
//	      - {name: Nick, kind: string, nullable: true}
//	      - {name: Tags, kind: list, elem: string}
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/adrianmcphee/rediswork"
	"gopkg.in/yaml.v3"
)

// File is the YAML document layout.
type File struct {
	Types []Type `yaml:"types"`
}

// Type declares one entity type.
type Type struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Field declares one field.
type Field struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Elem     string `yaml:"elem,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Key      bool   `yaml:"key,omitempty"`
	KeyOrder int    `yaml:"key_order,omitempty"`
	AltKey   bool   `yaml:"altkey,omitempty"`
}

// Set holds the schemas of one file by type name.
type Set struct {
	byName map[string]*rediswork.Schema
	order  []string
}

// Load reads and parses a schema file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse parses schema file content. Unknown keys are rejected.
func Parse(data []byte) (*Set, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, rediswork.WithContext(rediswork.ErrConfiguration, map[string]interface{}{
			"reason": "invalid schema yaml",
			"error":  err.Error(),
		})
	}
	if len(file.Types) == 0 {
		return nil, rediswork.WithContext(rediswork.ErrConfiguration, map[string]interface{}{
			"reason": "schema file declares no types",
		})
	}

	set := &Set{byName: make(map[string]*rediswork.Schema, len(file.Types))}
	for _, t := range file.Types {
		schema, err := t.Schema()
		if err != nil {
			return nil, err
		}
		if _, dup := set.byName[t.Name]; dup {
			return nil, rediswork.WithContext(rediswork.ErrConfiguration, map[string]interface{}{
				"type":   t.Name,
				"reason": "type declared twice",
			})
		}
		set.byName[t.Name] = schema
		set.order = append(set.order, t.Name)
	}
	return set, nil
}

// Schema builds the schema of one declared type.
func (t Type) Schema() (*rediswork.Schema, error) {
	def := rediswork.SchemaDefinition{TypeName: t.Name}
	for _, f := range t.Fields {
		kind, err := rediswork.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("type %s field %s: %w", t.Name, f.Name, err)
		}
		fd := rediswork.FieldDefinition{
			Name:     f.Name,
			Kind:     kind,
			Nullable: f.Nullable,
			Key:      f.Key,
			KeyOrder: f.KeyOrder,
			AltKey:   f.AltKey,
		}
		if kind == rediswork.KindList {
			elem, err := rediswork.ParseKind(f.Elem)
			if err != nil {
				return nil, fmt.Errorf("type %s field %s elem: %w", t.Name, f.Name, err)
			}
			fd.ElemKind = elem
		}
		def.Fields = append(def.Fields, fd)
	}
	return rediswork.NewSchema(def)
}

// Get returns the schema of a type.
func (s *Set) Get(name string) (*rediswork.Schema, error) {
	schema, ok := s.byName[name]
	if !ok {
		return nil, rediswork.WithContext(rediswork.ErrNotRegistered, map[string]interface{}{
			"type":  name,
			"known": s.Names(),
		})
	}
	return schema, nil
}

// All returns the schemas in file order.
func (s *Set) All() []*rediswork.Schema {
	out := make([]*rediswork.Schema, len(s.order))
	for i, name := range s.order {
		out[i] = s.byName[name]
	}
	return out
}

// Names returns the declared type names, sorted.
func (s *Set) Names() []string {
	names := append([]string(nil), s.order...)
	sort.Strings(names)
	return names
}
