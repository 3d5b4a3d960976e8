package pool

import "testing"

type block struct {
	value int
}

func TestAllocateReturnsDistinctStableAddresses(t *testing.T) {
	p := New[block](4)

	a := p.Allocate()
	b := p.Allocate()
	if a == nil || b == nil {
		t.Fatalf("expected non-nil allocations, got a=%v b=%v", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct addresses, got the same pointer twice")
	}
	a.value = 42
	if b.value == 42 {
		t.Fatalf("writes to a must not be visible through b")
	}
}

func TestAllocateFailsWhenFull(t *testing.T) {
	p := New[block](2)
	if p.Allocate() == nil {
		t.Fatal("expected first allocation to succeed")
	}
	if p.Allocate() == nil {
		t.Fatal("expected second allocation to succeed")
	}
	if p.Allocate() != nil {
		t.Fatal("expected third allocation on a capacity-2 pool to fail")
	}
	if p.FreeCount() != 0 {
		t.Fatalf("expected 0 free blocks, got %d", p.FreeCount())
	}
}

func TestDeallocateThenAllocateReusesBlock(t *testing.T) {
	p := New[block](1)
	a := p.Allocate()
	a.value = 7
	p.Deallocate(a)

	if p.FreeCount() != 1 {
		t.Fatalf("expected 1 free block after deallocate, got %d", p.FreeCount())
	}
	b := p.Allocate()
	if b != a {
		t.Fatalf("expected the sole reused block to be at the same address")
	}
	if b.value != 0 {
		t.Fatalf("expected the reused block to be zeroed, got %d", b.value)
	}
}

func TestDeallocateDoubleFreePanics(t *testing.T) {
	p := New[block](1)
	a := p.Allocate()
	p.Deallocate(a)

	defer func() {
		if recover() == nil {
			t.Fatal("expected double free to panic")
		}
	}()
	p.Deallocate(a)
}

func TestDeallocateForeignPointerPanics(t *testing.T) {
	p := New[block](1)
	foreign := &block{}

	defer func() {
		if recover() == nil {
			t.Fatal("expected deallocate of a foreign pointer to panic")
		}
	}()
	p.Deallocate(foreign)
}

func TestCapacity(t *testing.T) {
	p := New[block](8)
	if p.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", p.Capacity())
	}
}
