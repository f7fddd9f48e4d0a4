// interrupt_test.go - priority heap ordering and controller wiring

package main

import (
	"context"
	"testing"
	"time"
)

// stubSource is a minimal InterruptSource that never raises on its
// own; tests send events straight onto the controller's pending
// channel and read them back through Ready.
type stubSource struct {
	specs InterruptSpecs
	out   uint8
}

func (s *stubSource) OutBuf() uint8         { return s.out }
func (s *stubSource) Specs() InterruptSpecs { return s.specs }
func (s *stubSource) Run(ctx context.Context, events chan<- InterruptEvent) error {
	<-ctx.Done()
	return nil
}

// TestInterruptControllerOrdersByPriorityOnly covers the design note
// that the heap compares Priority only, ignoring IQR and Name.
func TestInterruptControllerOrdersByPriorityOnly(t *testing.T) {
	ic := newInterruptController(NewLogger("test", false))
	ic.RegisterDevice(&stubSource{specs: InterruptSpecs{Name: "low", IRQ: 1, Priority: 1}, out: 'L'})
	ic.RegisterDevice(&stubSource{specs: InterruptSpecs{Name: "high", IRQ: 2, Priority: 9}, out: 'H'})
	ic.RegisterDevice(&stubSource{specs: InterruptSpecs{Name: "mid", IRQ: 3, Priority: 5}, out: 'M'})

	ic.pending <- InterruptEvent{Name: "low", IRQ: 1, Priority: 1}
	ic.pending <- InterruptEvent{Name: "high", IRQ: 2, Priority: 9}
	ic.pending <- InterruptEvent{Name: "mid", IRQ: 3, Priority: 5}

	ev, dev, ready := ic.Ready()
	if !ready || ev.Priority != 9 || dev.OutBuf() != 'H' {
		t.Fatalf("first Ready() = %+v ready=%v, want the priority-9 event first", ev, ready)
	}
	ev, dev, ready = ic.Ready()
	if !ready || ev.Priority != 5 || dev.OutBuf() != 'M' {
		t.Fatalf("second Ready() = %+v ready=%v, want the priority-5 event next", ev, ready)
	}
	ev, dev, ready = ic.Ready()
	if !ready || ev.Priority != 1 || dev.OutBuf() != 'L' {
		t.Fatalf("third Ready() = %+v ready=%v, want the priority-1 event last", ev, ready)
	}
	if _, _, ready := ic.Ready(); ready {
		t.Fatalf("expected no interrupt ready once the heap is drained")
	}
}

// TestInterruptControllerRejectsDuplicateIRQ covers RegisterDevice's
// fatal path: two devices cannot share one IRQ line.
func TestInterruptControllerRejectsDuplicateIRQ(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic registering a second device on the same IRQ")
		}
	}()
	ic := newInterruptController(NewLogger("test", false))
	ic.RegisterDevice(&stubSource{specs: InterruptSpecs{Name: "a", IRQ: 1, Priority: 1}})
	ic.RegisterDevice(&stubSource{specs: InterruptSpecs{Name: "b", IRQ: 1, Priority: 2}})
}

// TestInterruptControllerReadyPanicsOnUnregisteredIRQ covers the
// unknown-IRQ fatal condition: an event naming an IRQ with no
// registered device must panic, not silently drop.
func TestInterruptControllerReadyPanicsOnUnregisteredIRQ(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an event naming an unregistered IRQ")
		}
	}()
	ic := newInterruptController(NewLogger("test", false))
	ic.pending <- InterruptEvent{Name: "ghost", IRQ: 99, Priority: 1}
	ic.Ready()
}

// TestInterruptControllerStartAndClose exercises the errgroup-backed
// lifecycle: Start launches a registered device's Run loop, Close
// cancels it and waits for a clean return.
func TestInterruptControllerStartAndClose(t *testing.T) {
	ic := newInterruptController(NewLogger("test", false))
	dev := &stubSource{specs: InterruptSpecs{Name: "stub", IRQ: 1, Priority: 1}}
	ic.RegisterDevice(dev)

	ic.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- ic.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close() returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Close() did not return after cancelling the device's context")
	}
}
