package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/search"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func records(t *testing.T, raw ...string) []search.Record {
	t.Helper()

	out := make([]search.Record, 0, len(raw))
	for _, r := range raw {
		var rec search.Record
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", r, err)
		}
		out = append(out, rec)
	}
	return out
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return rows
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local)
	if got, want := FileName(ts), "output_20240307_090502.csv"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name       string
		records    []string
		wantHeader []string
		wantRows   [][]string
	}{
		{
			name:       "no records",
			records:    nil,
			wantHeader: nil,
			wantRows:   nil,
		},
		{
			name:       "header from first record order",
			records:    []string{`{"name":"a","id":"1","status":"ACTIVE"}`},
			wantHeader: []string{"name", "id", "status"},
			wantRows:   [][]string{{"a", "1", "ACTIVE"}},
		},
		{
			name: "missing key is blank not shifted",
			records: []string{
				`{"name":"a","id":"1","status":"ACTIVE"}`,
				`{"name":"b","status":"ACTIVE"}`,
			},
			wantHeader: []string{"name", "id", "status"},
			wantRows:   [][]string{{"a", "1", "ACTIVE"}, {"b", "", "ACTIVE"}},
		},
		{
			name: "later record key order does not matter",
			records: []string{
				`{"name":"a","id":"1"}`,
				`{"id":"2","name":"b"}`,
			},
			wantHeader: []string{"name", "id"},
			wantRows:   [][]string{{"a", "1"}, {"b", "2"}},
		},
		{
			name: "extra keys on later records are dropped",
			records: []string{
				`{"name":"a"}`,
				`{"name":"b","extra":"x"}`,
			},
			wantHeader: []string{"name"},
			wantRows:   [][]string{{"a"}, {"b"}},
		},
		{
			name:       "mixed value types",
			records:    []string{`{"n":42,"ok":true,"none":null,"sans":["x","y"]}`},
			wantHeader: []string{"n", "ok", "none", "sans"},
			wantRows:   [][]string{{"42", "true", "", `["x","y"]`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, rows := Flatten(records(t, tt.records...))

			if !reflect.DeepEqual(header, tt.wantHeader) {
				t.Errorf("header = %v, want %v", header, tt.wantHeader)
			}
			if !reflect.DeepEqual(rows, tt.wantRows) {
				t.Errorf("rows = %v, want %v", rows, tt.wantRows)
			}
		})
	}
}

func TestWrite_EscapesAndEmpty(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := Write(&buf, nil)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != 0 || buf.Len() != 0 {
			t.Errorf("Write(nil) = %d rows, %d bytes; want 0, 0", n, buf.Len())
		}
	})

	t.Run("escaping", func(t *testing.T) {
		var buf bytes.Buffer
		recs := records(t, `{"name":"a, b","note":"say \"hi\"","multi":"line1\nline2","utf8":"zertifikat-ü"}`)

		n, err := Write(&buf, recs)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}

		got := readCSV(t, buf.Bytes())
		want := [][]string{
			{"name", "note", "multi", "utf8"},
			{"a, b", `say "hi"`, "line1\nline2", "zertifikat-ü"},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip = %q, want %q", got, want)
		}
		if !strings.Contains(buf.String(), `"a, b"`) {
			t.Errorf("comma field not quoted: %s", buf.String())
		}
	})
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, 1, 31, 23, 59, 58, 0, time.Local)
	e := NewExporter(dir).WithClock(func() time.Time { return ts }).WithLogger(zerolog.Nop())

	recs := records(t,
		`{"certificateName":"c.example.com","id":"3"}`,
		`{"certificateName":"b.example.com","id":"2"}`,
		`{"certificateName":"a.example.com"}`,
	)

	path, err := e.Export(recs)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if want := filepath.Join(dir, "output_20250131_235958.csv"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := [][]string{
		{"certificateName", "id"},
		{"c.example.com", "3"},
		{"b.example.com", "2"},
		{"a.example.com", ""},
	}
	if got := readCSV(t, data); !reflect.DeepEqual(got, want) {
		t.Errorf("file rows = %v, want %v", got, want)
	}

	if got := promtest.ToFloat64(rowsWritten); got != 3 {
		t.Errorf("vaas_export_rows_written = %v, want 3", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("directory holds %v, want only the export", names)
	}
}

func TestExporter_ExportEmptyCreatesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir).WithLogger(zerolog.Nop())

	path, err := e.Export(nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
	if !strings.HasPrefix(filepath.Base(path), "output_") || !strings.HasSuffix(path, ".csv") {
		t.Errorf("unexpected file name %q", path)
	}
}

func TestExporter_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	e := NewExporter(dir).WithLogger(zerolog.Nop())

	if _, err := e.Export(records(t, `{"id":"1"}`)); err == nil {
		t.Fatal("Export() into a missing directory should fail")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Export() created %s", dir)
	}
}

func TestExporter_NeverReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	e := NewExporter(dir).WithClock(func() time.Time { return ts }).WithLogger(zerolog.Nop())

	first, err := e.Export(records(t, `{"id":"first"}`))
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}

	_, err = e.Export(records(t, `{"id":"second"}`))
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("second Export() error = %v, want fs.ErrExist", err)
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "id\nfirst\n"; got != want {
		t.Errorf("first export = %q, want %q unchanged", got, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("directory holds %v, want only the first export", names)
	}
}
