package csvio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	in := &Table{
		Header: []string{"framework", "topic"},
		Rows: [][]string{
			{"JPA", "@Entity misuse"},
			{"Lombok", "line with, comma and \"quotes\""},
		},
	}
	if err := Write(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("rows: got %d", len(out.Rows))
	}
	if out.Cell(out.Rows[1], "topic") != `line with, comma and "quotes"` {
		t.Errorf("cell: got %q", out.Cell(out.Rows[1], "topic"))
	}
}

func TestRead_BOMAndShortRows(t *testing.T) {
	// WHAT: a UTF-8 BOM on the header and ragged rows are tolerated.
	// WHY: the corpus comes from spreadsheet exports.
	path := filepath.Join(t.TempDir(), "in.csv")
	data := "\uFEFFframework,topic,description\nJPA,@Id on field\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Header[0] != "framework" {
		t.Errorf("BOM not stripped: %q", tbl.Header[0])
	}
	if got := tbl.Cell(tbl.Rows[0], "description"); got != "" {
		t.Errorf("short row padding: got %q", got)
	}
}

func TestRead_Missing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
