//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/callback"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// TimerFlag selects the timer mode and the context its callback runs in.
// Flags combine with |, e.g. TimerPeriodic | TimerSoft.
type TimerFlag uint8

const (
	TimerOneShot  TimerFlag = 0x0 // fire once (RT_TIMER_FLAG_ONE_SHOT)
	TimerPeriodic TimerFlag = 0x2 // fire every period (RT_TIMER_FLAG_PERIODIC)
	TimerHard     TimerFlag = 0x0 // callback runs in the tick interrupt
	TimerSoft     TimerFlag = 0x4 // callback runs in the timer thread
)

// Timer is a handle to a kernel timer.
type Timer struct {
	object
}

// CreateTimer creates a timer that calls the C function at entry with param
// after period ticks. The timer is not running until Start.
func CreateTimer(name string, entry uintptr, param callback.Parameter, period Tick, flag TimerFlag) (Timer, error) {
	if err := ready(); err != nil {
		return Timer{}, err
	}
	n := makeName(name)
	p := rtTimerCreate(n.ptr(), entry, param.Uintptr(), uint32(period), uint8(flag))
	if p == nil {
		return Timer{}, rterr.New(rterr.KindError, "rt_timer_create")
	}
	return Timer{object{p}}, nil
}

// CreateTimerFunc creates a timer that calls fn each time it fires. fn stays
// registered until the timer is deleted, so one-shot timers can be
// restarted. With TimerHard, fn runs in interrupt context and must not
// block.
func CreateTimerFunc(name string, fn func(), period Tick, flag TimerFlag) (Timer, error) {
	if err := ready(); err != nil {
		return Timer{}, err
	}
	param := callback.FromFunc(fn)
	t, err := CreateTimer(name, callbackRepeatEntry(), param, period, flag)
	if err != nil {
		callback.Release(param)
		return Timer{}, err
	}
	own(t.ptr, param)
	return t, nil
}

func (t Timer) call(fn func(unsafe.Pointer) int, op string) error {
	if t.ptr == nil {
		return ErrNullHandle
	}
	if err := ready(); err != nil {
		return err
	}
	return check(fn(t.ptr), op)
}

func (t Timer) control(cmd int32, arg unsafe.Pointer) error {
	if t.ptr == nil {
		return ErrNullHandle
	}
	if err := ready(); err != nil {
		return err
	}
	return check(rtTimerControl(t.ptr, cmd, arg), "rt_timer_control")
}

// Start arms the timer.
func (t Timer) Start() error {
	return t.call(rtTimerStart, "rt_timer_start")
}

// Stop disarms the timer. Stopping a timer that is not running yields
// KindError.
func (t Timer) Stop() error {
	return t.call(rtTimerStop, "rt_timer_stop")
}

// Delete frees a timer created with CreateTimer and releases its Go
// callback.
func (t Timer) Delete() error {
	if err := t.call(rtTimerDelete, "rt_timer_delete"); err != nil {
		return err
	}
	disown(t.ptr)
	return nil
}

// SetTime changes the timer period. It takes effect on the next Start.
func (t Timer) SetTime(period Tick) error {
	v := uint32(period)
	return t.control(rtTimerCtrlSetTime, unsafe.Pointer(&v))
}

// Time returns the timer period.
func (t Timer) Time() (Tick, error) {
	var v uint32
	if err := t.control(rtTimerCtrlGetTime, unsafe.Pointer(&v)); err != nil {
		return 0, err
	}
	return Tick(v), nil
}

// SetOneShot switches the timer to one-shot mode.
func (t Timer) SetOneShot() error {
	return t.control(rtTimerCtrlSetOneshot, nil)
}

// SetPeriodic switches the timer to periodic mode.
func (t Timer) SetPeriodic() error {
	return t.control(rtTimerCtrlSetPeriodic, nil)
}

// Name returns the timer name.
func (t Timer) Name() string { return t.name() }

// Class returns the kernel object class, or ObjectClassNull for a zero
// handle.
func (t Timer) Class() ObjectClass { return t.class() }

// Valid reports whether t refers to a kernel object.
func (t Timer) Valid() bool { return t.ptr != nil }

// StaticTimer is a timer whose control block lives in Go memory.
// It must not be copied after Init.
type StaticTimer struct {
	cell staticCell[timerStorage]
}

// Init initializes the timer in place.
func (s *StaticTimer) Init(name string, entry uintptr, param callback.Parameter, period Tick, flag TimerFlag) error {
	if err := ready(); err != nil {
		return err
	}
	n := makeName(name)
	rtTimerInit(s.cell.ptr(), n.ptr(), entry, param.Uintptr(), uint32(period), uint8(flag))
	return nil
}

// InitFunc initializes the timer to call fn each time it fires.
func (s *StaticTimer) InitFunc(name string, fn func(), period Tick, flag TimerFlag) error {
	if err := ready(); err != nil {
		return err
	}
	param := callback.FromFunc(fn)
	if err := s.Init(name, callbackRepeatEntry(), param, period, flag); err != nil {
		callback.Release(param)
		return err
	}
	own(s.cell.addr(), param)
	return nil
}

// Detach removes the timer from the kernel and releases its Go callback.
func (s *StaticTimer) Detach() error {
	if err := s.Get().call(rtTimerDetach, "rt_timer_detach"); err != nil {
		return err
	}
	disown(s.cell.addr())
	s.cell.release()
	return nil
}

// Get returns a handle to the timer.
func (s *StaticTimer) Get() Timer {
	return Timer{object{s.cell.addr()}}
}
