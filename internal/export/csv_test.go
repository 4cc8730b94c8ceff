package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

func TestWriteCSV(t *testing.T) {
	ts := time.Date(2025, 12, 1, 11, 0, 0, 0, time.UTC)
	records := []model.AlertRecord{
		{
			ID:           "a1",
			UserEmail:    "u@example.com",
			MobileNumber: "09171234567",
			Level:        model.LevelDanger,
			PPM:          450,
			Datetime:     ts,
			Color:        "#FF0000",
		},
		{
			ID:        "a2",
			UserEmail: "u@example.com",
			Level:     model.LevelWarning,
			PPM:       305.5,
			Datetime:  ts.Add(-time.Minute),
			Color:     "#FF8C00",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][4] != "ppm" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][3] != "Danger" || rows[1][4] != "450" {
		t.Fatalf("first row = %v", rows[1])
	}
	if rows[2][4] != "305.5" {
		t.Fatalf("ppm formatting = %q", rows[2][4])
	}
	if rows[1][5] != "2025-12-01T11:00:00Z" {
		t.Fatalf("datetime = %q", rows[1][5])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
