//go:build !ios && !android && (amd64 || arm64)

package rttgo

// SpinLock protects a value from concurrent access by kernel threads and
// interrupt handlers by masking interrupts while it is held. It never
// blocks, so the critical section must be short and must not call anything
// that may sleep.
//
// The zero SpinLock holds the zero value of T.
type SpinLock[T any] struct {
	_     noCopy
	value T
}

// NewSpinLock returns a lock holding v.
func NewSpinLock[T any](v T) *SpinLock[T] {
	return &SpinLock[T]{value: v}
}

// SpinGuard is a held SpinLock. Call Unlock exactly once.
type SpinGuard[T any] struct {
	lock  *SpinLock[T]
	level int
}

// Lock disables interrupts and returns a guard giving access to the value.
func (l *SpinLock[T]) Lock() *SpinGuard[T] {
	level := 0
	if ready() == nil {
		level = rtHwInterruptDisable()
	}
	return &SpinGuard[T]{lock: l, level: level}
}

// Value returns the protected value. The pointer must not be used after
// Unlock.
func (g *SpinGuard[T]) Value() *T {
	return &g.lock.value
}

// Unlock restores the interrupt state saved by Lock.
func (g *SpinGuard[T]) Unlock() {
	if ready() == nil {
		rtHwInterruptEnable(g.level)
	}
}

// Do runs fn with the lock held.
func (l *SpinLock[T]) Do(fn func(v *T)) {
	g := l.Lock()
	defer g.Unlock()
	fn(g.Value())
}

// SchedulerLock disables preemption for the calling thread. Interrupts stay
// enabled. Calls nest and must be paired with SchedulerUnlock.
func SchedulerLock() {
	if ready() == nil {
		rtEnterCritical()
	}
}

// SchedulerUnlock re-enables preemption.
func SchedulerUnlock() {
	if ready() == nil {
		rtExitCritical()
	}
}
