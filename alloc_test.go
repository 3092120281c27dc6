//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"errors"
	"testing"
	"unsafe"
)

func TestMallocAligned(t *testing.T) {
	k := installFakeKernel(t)

	for _, align := range []uintptr{0, 8, 16, 64} {
		p := Malloc(100, align)
		if p == nil {
			t.Fatalf("Malloc(100, %d) returned nil", align)
		}
		want := align
		if want == 0 {
			want = StackAlign
		}
		if uintptr(p)%want != 0 {
			t.Errorf("Malloc(100, %d) = %p, not aligned", align, p)
		}
		Free(p)
	}
	if len(k.heap) != 0 {
		t.Errorf("%d allocations not freed", len(k.heap))
	}
	Free(nil)
}

func TestMallocExhaustionFaults(t *testing.T) {
	k := installFakeKernel(t)
	k.failAlloc = true

	var fault any
	SetFaultHandler(func(v any) { fault = v })
	if p := Malloc(64, 8); p != nil {
		t.Errorf("Malloc = %p, want nil", p)
	}
	if fault != "allocation error: size 64 align 8" {
		t.Errorf("fault = %v", fault)
	}
	if s := AllocStack(1024); s != nil {
		t.Errorf("AllocStack returned %d bytes", len(s))
	}
}

func TestMallocWithoutHeap(t *testing.T) {
	installFakeKernel(t)
	rtMallocAlign = nil

	var fault any
	SetFaultHandler(func(v any) { fault = v })
	Malloc(8, 8)
	if err, ok := fault.(error); !ok || !errors.Is(err, KindNoSys) {
		t.Errorf("fault = %v, want KindNoSys error", fault)
	}
}

func TestAllocStack(t *testing.T) {
	k := installFakeKernel(t)

	stack := AllocStack(512)
	if len(stack) != 512 {
		t.Fatalf("len = %d", len(stack))
	}
	if uintptr(unsafe.Pointer(&stack[0]))%StackAlign != 0 {
		t.Error("stack not aligned")
	}
	stack[511] = 1
	FreeStack(stack)
	if len(k.heap) != 0 {
		t.Error("stack not freed")
	}
	if AllocStack(0) != nil {
		t.Error("AllocStack(0) returned memory")
	}
	FreeStack(nil)
}
