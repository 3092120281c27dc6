//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"errors"
	"testing"

	"github.com/obinnaokechukwu/rttgo/callback"
)

func TestPeriodicTimerFunc(t *testing.T) {
	k := installFakeKernel(t)
	base := callback.Pending()

	fired := 0
	tm, err := CreateTimerFunc("tick", func() { fired++ }, 10, TimerPeriodic|TimerSoft)
	if err != nil {
		t.Fatalf("CreateTimerFunc failed: %v", err)
	}
	if tm.Name() != "tick" || tm.Class() != ObjectClassTimer {
		t.Errorf("Name = %q, Class = %d", tm.Name(), tm.Class())
	}
	if err := tm.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if !k.fire(tm) {
			t.Fatalf("timer not running at expiry %d", i)
		}
	}
	if fired != 3 {
		t.Errorf("fired = %d, want 3", fired)
	}

	if err := tm.Stop(); err != nil {
		t.Fatal(err)
	}
	if k.fire(tm) {
		t.Error("stopped timer fired")
	}
	if err := tm.Stop(); !errors.Is(err, KindError) {
		t.Errorf("Stop of stopped timer error = %v, want KindError", err)
	}

	if err := tm.Delete(); err != nil {
		t.Fatal(err)
	}
	if callback.Pending() != base {
		t.Errorf("Pending = %d after Delete, want %d", callback.Pending(), base)
	}
}

func TestOneShotTimerCanRestart(t *testing.T) {
	k := installFakeKernel(t)

	fired := 0
	tm, err := CreateTimerFunc("once", func() { fired++ }, 5, TimerOneShot)
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Delete()

	tm.Start()
	k.fire(tm)
	if k.fire(tm) {
		t.Error("one-shot timer fired twice")
	}
	tm.Start()
	k.fire(tm)
	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestTimerControl(t *testing.T) {
	k := installFakeKernel(t)

	tm, err := CreateTimerFunc("ctl", func() {}, 10, TimerOneShot)
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Delete()

	if err := tm.SetTime(250); err != nil {
		t.Fatal(err)
	}
	got, err := tm.Time()
	if err != nil || got != 250 {
		t.Errorf("Time = (%d, %v), want 250", got, err)
	}

	if err := tm.SetPeriodic(); err != nil {
		t.Fatal(err)
	}
	if TimerFlag(k.object(tm.ptr).flag)&TimerPeriodic == 0 {
		t.Error("SetPeriodic did not set the periodic flag")
	}
	if err := tm.SetOneShot(); err != nil {
		t.Fatal(err)
	}
	if TimerFlag(k.object(tm.ptr).flag)&TimerPeriodic != 0 {
		t.Error("SetOneShot left the periodic flag")
	}
}

func TestTimerPanicIsContained(t *testing.T) {
	k := installFakeKernel(t)
	var faults int
	SetFaultHandler(func(any) { faults++ })

	tm, err := CreateTimerFunc("bad", func() { panic("timer") }, 1, TimerPeriodic)
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Delete()

	tm.Start()
	k.fire(tm)
	k.fire(tm)
	if faults != 2 {
		t.Errorf("faults = %d, want 2", faults)
	}
}

func TestStaticTimer(t *testing.T) {
	k := installFakeKernel(t)
	base := callback.Pending()

	var st StaticTimer
	fired := 0
	if err := st.InitFunc("stimer", func() { fired++ }, 100, TimerPeriodic); err != nil {
		t.Fatal(err)
	}
	tm := st.Get()
	if !tm.isSystemObject() || tm.Name() != "stimer" {
		t.Errorf("static timer system=%v name=%q", tm.isSystemObject(), tm.Name())
	}
	tm.Start()
	k.fire(tm)
	k.fire(tm)
	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
	if err := st.Detach(); err != nil {
		t.Fatal(err)
	}
	if callback.Pending() != base {
		t.Errorf("Pending = %d after Detach, want %d", callback.Pending(), base)
	}
	if err := st.Detach(); !errors.Is(err, KindError) {
		t.Errorf("second Detach error = %v", err)
	}
}

func TestTimerNullAndUnloaded(t *testing.T) {
	var tm Timer
	if err := tm.Start(); err != ErrNullHandle {
		t.Errorf("Start error = %v, want ErrNullHandle", err)
	}
	if _, err := tm.Time(); err != ErrNullHandle {
		t.Errorf("Time error = %v", err)
	}

	withoutKernel(t)
	if _, err := CreateTimerFunc("x", func() {}, 1, TimerOneShot); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("CreateTimerFunc error = %v", err)
	}
}
