// interrupt.go - priority interrupt controller and device contract

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import (
	"container/heap"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// pendingEventCapacity bounds the inbound event channel. The design's
// event queue is conceptually unbounded; Go requires a finite buffer,
// so this is sized far beyond anything the bundled devices or demo
// programs can produce in one run. Filling it is a device bug, not a
// normal condition, so the fill path panics rather than silently
// dropping an interrupt.
const pendingEventCapacity = 4096

// InterruptSpecs describes the static identity of an interrupt source:
// the IRQ line it raises on and the priority used to break ties
// against other sources pending in the same tick.
type InterruptSpecs struct {
	Name     string
	IRQ      uint8
	Priority uint8
}

// InterruptEvent is one raised interrupt, carrying enough of the
// source's identity for the controller to answer "what's ready" and
// for the CPU to fetch the device's output byte.
type InterruptEvent struct {
	Name     string
	IRQ      uint8
	Priority uint8
}

// InterruptSource is the contract every interrupt-capable device
// implements. Run owns the device's lifecycle: it blocks until ctx is
// canceled, pushing InterruptEvents onto events as they occur. This
// replaces a raw atomic stop flag with context.Context, the idiomatic
// Go way to tell a goroutine to wind down.
type InterruptSource interface {
	OutBuf() uint8
	Specs() InterruptSpecs
	Run(ctx context.Context, events chan<- InterruptEvent) error
}

// eventHeap is a container/heap max-heap ordered by Priority only, the
// one field the design specifies as the tie-breaker among pending
// events.
type eventHeap []InterruptEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(InterruptEvent)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// InterruptController owns the set of registered devices, the
// goroutine group running their Run loops, and the priority heap of
// events waiting to be serviced by the CPU.
type InterruptController struct {
	devices map[uint8]InterruptSource
	pending chan InterruptEvent
	heap    eventHeap
	group   *errgroup.Group
	cancel  context.CancelFunc
	log     *Logger
}

func newInterruptController(log *Logger) *InterruptController {
	return &InterruptController{
		devices: make(map[uint8]InterruptSource),
		pending: make(chan InterruptEvent, pendingEventCapacity),
		log:     log,
	}
}

// RegisterDevice adds a device to the controller; its Run loop is
// launched by Start. A device registered after Start has been called
// is recorded but its Run loop is not started. It is the public seam
// demo programs and tests use to attach a keyboard or any other
// InterruptSource before the clock starts ticking.
func (ic *InterruptController) RegisterDevice(dev InterruptSource) {
	specs := dev.Specs()
	if _, exists := ic.devices[specs.IRQ]; exists {
		panic(fmt.Sprintf("sixfiveoh: IRQ %d already claimed, cannot register %q", specs.IRQ, specs.Name))
	}
	ic.devices[specs.IRQ] = dev
	ic.log.Logf("registered device %q on IRQ %d (priority %d)", specs.Name, specs.IRQ, specs.Priority)
}

// Start launches every registered device's Run loop under a shared
// errgroup bound to ctx, so Close can wait for a clean shutdown.
func (ic *InterruptController) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	ic.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	ic.group = g
	for _, dev := range ic.devices {
		dev := dev
		g.Go(func() error {
			return dev.Run(gctx, ic.pending)
		})
	}
}

// Close cancels every device's context and waits for their Run loops
// to return, surfacing the first error any of them reported.
func (ic *InterruptController) Close() error {
	if ic.cancel == nil {
		return nil
	}
	ic.cancel()
	return ic.group.Wait()
}

// Drain moves every event currently sitting on the inbound channel
// into the priority heap, without blocking. Ready calls this before
// popping, so the inbound channel is drained each time the CPU polls
// for an interrupt.
func (ic *InterruptController) Drain() {
	for {
		select {
		case ev := <-ic.pending:
			heap.Push(&ic.heap, ev)
		default:
			return
		}
	}
}

// Ready reports whether an interrupt is waiting to be serviced and, if
// so, pops the highest-priority one and returns its source so the CPU
// can read OutBuf. A popped event naming an IRQ with no registered
// device is a controller bug, since devices only ever carry their own
// specs' IRQ into an event.
func (ic *InterruptController) Ready() (InterruptEvent, InterruptSource, bool) {
	ic.Drain()
	if ic.heap.Len() == 0 {
		return InterruptEvent{}, nil, false
	}
	ev := heap.Pop(&ic.heap).(InterruptEvent)
	dev, ok := ic.devices[ev.IRQ]
	if !ok {
		panic(fmt.Sprintf("sixfiveoh: interrupt event for unregistered IRQ %d (%q)", ev.IRQ, ev.Name))
	}
	return ev, dev, true
}
