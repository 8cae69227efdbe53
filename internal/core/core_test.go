package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"
)

type recorder struct {
	events []string
}

type fakeComponent struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
}

func (f *fakeComponent) Start() error {
	f.rec.events = append(f.rec.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(context.Context) error {
	f.rec.events = append(f.rec.events, "stop:"+f.name)
	return f.stopErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(testLogger(), time.Second)
	for _, name := range []string{"store", "cache", "gateway"} {
		if err := app.Add(name, &fakeComponent{name: name, rec: rec}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{
		"start:store", "start:cache", "start:gateway",
		"stop:gateway", "stop:cache", "stop:store",
	}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	boom := errors.New("listen failed")
	app := NewApp(testLogger(), time.Second)
	_ = app.Add("store", &fakeComponent{name: "store", rec: rec})
	_ = app.Add("pool", &fakeComponent{name: "pool", rec: rec})
	_ = app.Add("gateway", &fakeComponent{name: "gateway", rec: rec, startErr: boom})
	_ = app.Add("cron", &fakeComponent{name: "cron", rec: rec})

	err := app.Start()
	if !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want wrapping %v", err, boom)
	}

	want := []string{"start:store", "start:pool", "start:gateway", "stop:pool", "stop:store"}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestApp_StopOnlyComponent(t *testing.T) {
	t.Parallel()

	var stopped bool
	app := NewApp(testLogger(), 0)
	_ = app.Add("tracing", StopFunc(func(context.Context) error {
		stopped = true
		return nil
	}))

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !stopped {
		t.Error("stop-only component was not stopped")
	}
}

func TestApp_StopErrorsJoined(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	app := NewApp(testLogger(), time.Second)
	_ = app.Add("a", &fakeComponent{name: "a", rec: rec, stopErr: errA})
	_ = app.Add("b", &fakeComponent{name: "b", rec: rec, stopErr: errB})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := app.Stop()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Stop error = %v, want both", err)
	}
}

func TestApp_AddValidation(t *testing.T) {
	t.Parallel()

	app := NewApp(testLogger(), time.Second)
	if err := app.Add("plain", struct{}{}); err == nil {
		t.Error("expected error for component without lifecycle")
	}

	_ = app.Add("x", StartFunc(func() error { return nil }))
	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.Add("late", StartFunc(func() error { return nil })); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Add after Start = %v, want ErrAlreadyStarted", err)
	}
	if err := app.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if got := app.Names(); !slices.Equal(got, []string{"x"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(testLogger(), time.Second)
	_ = app.Add("svc", &fakeComponent{name: "svc", rec: rec})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !slices.Equal(rec.events, []string{"start:svc", "stop:svc"}) {
		t.Errorf("events = %v", rec.events)
	}
}
