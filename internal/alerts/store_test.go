package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

func record(id string, ts time.Time) model.AlertRecord {
	return model.AlertRecord{
		ID:        id,
		UserEmail: "u@example.com",
		Level:     model.LevelDanger,
		PPM:       450,
		Datetime:  ts,
		Color:     "#FF0000",
	}
}

func TestStoreBounded(t *testing.T) {
	s := NewStore(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(record(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second)))
	}
	got := s.List(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "e" {
		t.Fatalf("oldest entries not evicted: %v..%v", got[0].ID, got[2].ID)
	}
}

func TestStoreSince(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	s.Add(record("a", base))
	s.Add(record("b", base.Add(time.Minute)))
	got := s.Since(base.Add(30 * time.Second))
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("since = %v", got)
	}
}

type countingAppender struct {
	n   int
	err error
}

func (c *countingAppender) AppendAlert(ctx context.Context, record model.AlertRecord) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.n++
	return record.ID, nil
}

func TestWriterAssignsID(t *testing.T) {
	app := &countingAppender{}
	recent := NewStore(10)
	w := NewWriter(app, recent, nil)
	id, err := w.Append(context.Background(), model.AlertRecord{
		UserEmail: "u@example.com",
		Level:     model.LevelWarning,
		PPM:       305,
		Datetime:  time.Now(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id == "" {
		t.Fatalf("no id assigned")
	}
	if app.n != 1 {
		t.Fatalf("durable appends = %d, want 1", app.n)
	}
	if got := recent.List(0); len(got) != 1 || got[0].ID != id {
		t.Fatalf("recent ring not updated: %v", got)
	}
}

func TestWriterFaultSkipsRing(t *testing.T) {
	app := &countingAppender{err: errors.New("down")}
	recent := NewStore(10)
	w := NewWriter(app, recent, nil)
	if _, err := w.Append(context.Background(), record("x", time.Now())); err == nil {
		t.Fatalf("expected error")
	}
	if got := recent.List(0); len(got) != 0 {
		t.Fatalf("failed append reached the recent ring")
	}
}
