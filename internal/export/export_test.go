package export

import (
	"strings"
	"testing"

	"github.com/adrianmcphee/rediswork"
)

func testSchema(t *testing.T, name string) *rediswork.Schema {
	t.Helper()
	s, err := rediswork.NewSchema(rediswork.SchemaDefinition{
		TypeName: name,
		Fields: []rediswork.FieldDefinition{
			{Name: "Id", Kind: rediswork.KindInt, Key: true},
			{Name: "Name", Kind: rediswork.KindString},
			{Name: "Score", Kind: rediswork.KindFloat},
		},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestIndexToCommand(t *testing.T) {
	got := IndexToCommand(testSchema(t, "Person"))
	want := "FT.CREATE Person_idx ON HASH PREFIX 1 Person_[ STOPWORDS 0 SCHEMA " +
		"Id NUMERIC SORTABLE " +
		"Name TEXT SORTABLE Name_tag TAG SEPARATOR ~ Name_reverse_tag TAG SEPARATOR ~ Name_subset_tag TAG SEPARATOR ~ " +
		"Score NUMERIC SORTABLE\n"
	if got != want {
		t.Errorf("IndexToCommand() =\n%s\nwant\n%s", got, want)
	}
}

func TestExportIndexes_Ordered(t *testing.T) {
	output := ExportIndexes([]*rediswork.Schema{testSchema(t, "Zeta"), testSchema(t, "Alpha")})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), output)
	}
	if !strings.HasPrefix(lines[0], "FT.CREATE Alpha_idx") || !strings.HasPrefix(lines[1], "FT.CREATE Zeta_idx") {
		t.Errorf("unexpected order:\n%s", output)
	}
}

func TestExportIndexes_Empty(t *testing.T) {
	if output := ExportIndexes(nil); output != "" {
		t.Errorf("expected empty output, got %q", output)
	}
}

func TestExportDocuments(t *testing.T) {
	b := rediswork.NewDocument("Person_[Id]_2")
	b.Set("Name", "Ada Lovelace")
	a := rediswork.NewDocument("Person_[Id]_1")
	a.Set("Name", "Emre")
	empty := rediswork.NewDocument("Person_[Id]_3")

	output := ExportDocuments([]*rediswork.Document{b, a, empty})
	want := "DEL Person_[Id]_1\n" +
		"HSET Person_[Id]_1 Name Emre\n" +
		"DEL Person_[Id]_2\n" +
		"HSET Person_[Id]_2 Name \"Ada Lovelace\"\n" +
		"DEL Person_[Id]_3\n"
	if output != want {
		t.Errorf("ExportDocuments() =\n%s\nwant\n%s", output, want)
	}
}

func TestExportRows(t *testing.T) {
	s := testSchema(t, "Person")

	output, err := ExportRows(s, []rediswork.Row{{"Id": "1", "Name": "Emre", "Score": "2.5"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(output, "DEL Person_[Id]_1\nHSET Person_[Id]_1 ") {
		t.Errorf("unexpected output:\n%s", output)
	}
	for _, want := range []string{"Name Emre", "Name_tag emre", "Name_reverse_tag erme", "Score 2.5"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}

	if _, err := ExportRows(s, []rediswork.Row{{"Name": "no key"}}); !rediswork.IsMapping(err) {
		t.Errorf("expected mapping error, got %v", err)
	}
}

func TestExport(t *testing.T) {
	s := testSchema(t, "Person")
	output, err := Export(s, []rediswork.Row{{"Id": "1", "Name": "Emre"}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got:\n%s", output)
	}
	if !strings.HasPrefix(lines[0], "FT.CREATE") || !strings.HasPrefix(lines[1], "DEL") || !strings.HasPrefix(lines[2], "HSET") {
		t.Errorf("unexpected script:\n%s", output)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"Person_[Id]_1", "Person_[Id]_1"},
		{"", `""`},
		{"two words", `"two words"`},
		{`say "hi"`, `"say \"hi\""`},
		{"it's", `"it's"`},
		{`back\slash`, `"back\\slash"`},
		{"line\nbreak", `"line\nbreak"`},
		{"tab\there", `"tab\there"`},
		{"bell\x07", `"bell\x07"`},
		{"___|empty|___", "___|empty|___"},
		{`{"city":"x"}`, `"{\"city\":\"x\"}"`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
