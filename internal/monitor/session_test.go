package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/Zyldzkie/gas-guard/internal/alerts"
	"github.com/Zyldzkie/gas-guard/internal/classify"
	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/model"
	"github.com/Zyldzkie/gas-guard/internal/profile"
)

type fakeResolver struct {
	binding model.HardwareBinding
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, identity string) (model.HardwareBinding, error) {
	if f.err != nil {
		return model.HardwareBinding{}, f.err
	}
	return f.binding, nil
}

type fakeThresholds struct {
	mu  sync.Mutex
	cfg model.ThresholdConfig
	err error
}

func (f *fakeThresholds) Current(ctx context.Context, hardwareID string) (model.ThresholdConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.ThresholdConfig{}, f.err
	}
	return f.cfg, nil
}

func (f *fakeThresholds) set(cfg model.ThresholdConfig, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	f.err = err
}

type fakeAppender struct {
	mu      sync.Mutex
	records []model.AlertRecord
	err     error
}

func (f *fakeAppender) AppendAlert(ctx context.Context, record model.AlertRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, record)
	return record.ID, nil
}

func (f *fakeAppender) all() []model.AlertRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AlertRecord, len(f.records))
	copy(out, f.records)
	return out
}

func testSession(th *fakeThresholds, app *fakeAppender, monCfg config.MonitorConfig) *Session {
	return NewSession("u@example.com", Deps{
		Resolver: &fakeResolver{binding: model.HardwareBinding{
			Identity:     "u@example.com",
			HardwareID:   "HW1",
			MobileNumber: "09171234567",
		}},
		Thresholds: th,
		Writer:     alerts.NewWriter(app, alerts.NewStore(100), nil),
		Monitor:    monCfg,
	})
}

func reading(ppm float64) model.LiveReading {
	return model.LiveReading{HardwareID: "HW1", PPM: ppm, ReceivedAt: time.Now().UTC()}
}

func TestNoPersistOnSafe(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()
	for _, ppm := range []float64{0, 95, 150, 299, 299.99} {
		s.handleReading(ctx, reading(ppm))
	}
	if n := len(app.all()); n != 0 {
		t.Fatalf("safe readings persisted %d records", n)
	}
	if _, level, ok := s.Current(); !ok || level != model.LevelSafe {
		t.Fatalf("current level = %v ok=%v, want Safe", level, ok)
	}
}

func TestExactlyOneAlertPerQualifyingReading(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()
	values := []float64{305, 310, 450, 450, 320}
	for _, ppm := range values {
		s.handleReading(ctx, reading(ppm))
	}
	got := app.all()
	if len(got) != len(values) {
		t.Fatalf("appends = %d, want %d (no coalescing)", len(got), len(values))
	}
}

func TestThresholdFreshness(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()

	s.handleReading(ctx, reading(350))
	th.set(model.ThresholdConfig{Warning: 100, Danger: 200}, nil)
	s.handleReading(ctx, reading(350))

	got := app.all()
	if len(got) != 2 {
		t.Fatalf("appends = %d, want 2", len(got))
	}
	if got[0].Level != model.LevelWarning {
		t.Fatalf("first level = %s, want Warning under old thresholds", got[0].Level)
	}
	if got[1].Level != model.LevelDanger {
		t.Fatalf("second level = %s, want Danger under new thresholds", got[1].Level)
	}
}

func TestThresholdFaultSkipsReading(t *testing.T) {
	th := &fakeThresholds{err: errors.New("transient")}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()

	s.handleReading(ctx, reading(500))
	if n := len(app.all()); n != 0 {
		t.Fatalf("emitted %d records on threshold fault, want 0", n)
	}
	if _, _, ok := s.Current(); ok {
		t.Fatalf("reading classified despite threshold fault")
	}

	// Next reading retries independently.
	th.set(model.ThresholdConfig{Warning: 300, Danger: 400}, nil)
	s.handleReading(ctx, reading(500))
	if n := len(app.all()); n != 1 {
		t.Fatalf("appends = %d after recovery, want 1", n)
	}
}

func TestRecordFields(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()

	s.handleReading(ctx, reading(305))
	s.handleReading(ctx, reading(450))

	got := app.all()
	if len(got) != 2 {
		t.Fatalf("appends = %d, want 2", len(got))
	}
	warn, danger := got[0], got[1]
	if warn.UserEmail != "u@example.com" || warn.MobileNumber != "09171234567" {
		t.Fatalf("identity/contact not propagated: %+v", warn)
	}
	if warn.Level != model.LevelWarning || warn.Color != classify.ColorWarning || warn.PPM != 305 {
		t.Fatalf("warning record wrong: %+v", warn)
	}
	if danger.Level != model.LevelDanger || danger.Color != classify.ColorDanger || danger.PPM != 450 {
		t.Fatalf("danger record wrong: %+v", danger)
	}
	if warn.ID == "" || danger.ID == "" {
		t.Fatalf("record ids not assigned")
	}
	if warn.Datetime.IsZero() {
		t.Fatalf("datetime not set")
	}
}

func TestStoreFaultDropsAlertOnly(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{err: errors.New("write fault")}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()

	s.handleReading(ctx, reading(450))
	if _, level, ok := s.Current(); !ok || level != model.LevelDanger {
		t.Fatalf("live display must keep updating on store faults")
	}
}

func TestDebounceWindowExtension(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{DebounceWindow: time.Hour})
	ctx := context.Background()

	s.handleReading(ctx, reading(450))
	s.handleReading(ctx, reading(460))
	if n := len(app.all()); n != 1 {
		t.Fatalf("appends = %d with debounce, want 1", n)
	}
	// A different level is its own debounce key.
	s.handleReading(ctx, reading(305))
	if n := len(app.all()); n != 2 {
		t.Fatalf("appends = %d, want 2 (warning not suppressed by danger)", n)
	}
}

func TestConfigReloadUpdatesDebounce(t *testing.T) {
	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := testSession(th, app, config.MonitorConfig{})
	ctx := context.Background()

	s.handleReading(ctx, reading(450))
	s.handleReading(ctx, reading(460))
	if n := len(app.all()); n != 2 {
		t.Fatalf("appends = %d without debounce, want 2", n)
	}

	cfg := config.DefaultConfig()
	cfg.Monitor.DebounceWindow = time.Hour
	s.UpdateConfig(cfg)

	s.handleReading(ctx, reading(470))
	s.handleReading(ctx, reading(480))
	if n := len(app.all()); n != 3 {
		t.Fatalf("appends = %d after reload, want 3 (repeat suppressed)", n)
	}

	cfg.Monitor.DebounceWindow = 0
	s.UpdateConfig(cfg)
	s.handleReading(ctx, reading(490))
	if n := len(app.all()); n != 4 {
		t.Fatalf("appends = %d after disabling debounce, want 4", n)
	}
}

func TestStartFailsWithoutProfile(t *testing.T) {
	s := NewSession("ghost@example.com", Deps{
		Resolver:   &fakeResolver{err: profile.ErrBindingNotFound},
		Thresholds: &fakeThresholds{},
		Writer:     alerts.NewWriter(&fakeAppender{}, nil, nil),
	})
	if err := s.Start(context.Background()); !errors.Is(err, profile.ErrBindingNotFound) {
		t.Fatalf("err = %v, want ErrBindingNotFound", err)
	}
}

func TestStartFailsWithoutHardwareID(t *testing.T) {
	s := NewSession("u@example.com", Deps{
		Resolver:   &fakeResolver{binding: model.HardwareBinding{Identity: "u@example.com"}},
		Thresholds: &fakeThresholds{},
		Writer:     alerts.NewWriter(&fakeAppender{}, nil, nil),
	})
	if err := s.Start(context.Background()); !errors.Is(err, ErrNoHardwareID) {
		t.Fatalf("err = %v, want ErrNoHardwareID", err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	th := &fakeThresholds{cfg: model.ThresholdConfig{Warning: 300, Danger: 400}}
	app := &fakeAppender{}
	s := NewSession("u@example.com", Deps{
		Resolver: &fakeResolver{binding: model.HardwareBinding{
			Identity:   "u@example.com",
			HardwareID: "HW1",
		}},
		Thresholds: th,
		Writer:     alerts.NewWriter(app, alerts.NewStore(100), nil),
		FeedClient: client,
		FeedConfig: config.FeedConfig{
			RedisAddr:          mr.Addr(),
			ChannelSuffix:      "gas_value",
			ResubscribeBackoff: 10 * time.Millisecond,
		},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Stop)

	waitFor(t, "subscription", func() bool { return s.Online() })

	mr.Publish("HW1/gas_value", "95")
	mr.Publish("HW1/gas_value", "305")
	mr.Publish("HW1/gas_value", "450")
	waitFor(t, "two alerts", func() bool { return len(app.all()) == 2 })

	got := app.all()
	if got[0].Level != model.LevelWarning || got[0].PPM != 305 {
		t.Fatalf("first record = %+v, want Warning 305", got[0])
	}
	if got[1].Level != model.LevelDanger || got[1].PPM != 450 {
		t.Fatalf("second record = %+v, want Danger 450", got[1])
	}
	for _, rec := range got {
		if rec.UserEmail != "u@example.com" {
			t.Fatalf("record for wrong identity: %+v", rec)
		}
	}

	if cur, level, ok := s.Current(); !ok || cur.PPM != 450 || level != model.LevelDanger {
		t.Fatalf("current = %+v %v %v, want 450 Danger", cur, level, ok)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
