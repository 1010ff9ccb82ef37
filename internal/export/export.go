// Package export renders rediswork indexes and documents as redis-cli scripts.
//
// The output replays with `redis-cli < script.txt` against a server with the
// search module loaded.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adrianmcphee/rediswork"
)

// ExportIndexes renders one FT.CREATE line per schema, ordered by index name.
func ExportIndexes(schemas []*rediswork.Schema) string {
	sorted := append([]*rediswork.Schema(nil), schemas...)
	sort.Slice(sorted, func(i, j int) bool { // Deterministic output
		return sorted[i].IndexName() < sorted[j].IndexName()
	})

	var sb strings.Builder
	for _, s := range sorted {
		sb.WriteString(IndexToCommand(s))
	}
	return sb.String()
}

// IndexToCommand renders the FT.CREATE command of one schema.
func IndexToCommand(schema *rediswork.Schema) string {
	return commandLine("FT.CREATE", rediswork.IndexDefinitionArgs(schema))
}

// ExportDocuments renders the documents as full replacements, ordered by key.
func ExportDocuments(docs []*rediswork.Document) string {
	sorted := append([]*rediswork.Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	var sb strings.Builder
	for _, doc := range sorted {
		sb.WriteString(documentToCommands(doc))
	}
	return sb.String()
}

// documentToCommands renders DEL then HSET so stale fields never survive a replay.
func documentToCommands(doc *rediswork.Document) string {
	args := []string{doc.ID}
	for _, name := range doc.Names() {
		v, _ := doc.Get(name)
		args = append(args, name, v)
	}
	if len(args) == 1 {
		return commandLine("DEL", []string{doc.ID})
	}
	return commandLine("DEL", []string{doc.ID}) + commandLine("HSET", args)
}

// ExportRows rebuilds each row's document through the schema and renders it.
func ExportRows(schema *rediswork.Schema, rows []rediswork.Row) (string, error) {
	docs := make([]*rediswork.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := schema.DocumentFromRow(row)
		if err != nil {
			return "", fmt.Errorf("export %s: %w", schema.TypeName(), err)
		}
		docs = append(docs, doc)
	}
	return ExportDocuments(docs), nil
}

// Export renders the index definition followed by the documents.
func Export(schema *rediswork.Schema, rows []rediswork.Row) (string, error) {
	data, err := ExportRows(schema, rows)
	if err != nil {
		return "", err
	}
	return IndexToCommand(schema) + data, nil
}

func commandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ") + "\n"
}

// quote renders an argument the way redis-cli splits it back.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\r\n\"'\\") && isPrintable(s) {
		return s
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, `\x%02x`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func isPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return true
}
