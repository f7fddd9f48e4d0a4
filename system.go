// system.go - the top-level driver: wires every component, loads a
// program image, runs the tick loop until halt, and reports stats

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Stats is the run summary System.Run produces: total cycles and
// instructions executed, instructions-per-cycle, and the cache's
// lifetime hit/access counters.
type Stats struct {
	Cycles        uint64
	Instructions  uint64
	IPC           float64
	CacheHits     uint64
	CacheAccesses uint64
	HitRatio      float64
}

// SystemConfig collects the knobs the main.go harness exposes as flags.
type SystemConfig struct {
	Debug        bool
	TickInterval time.Duration // 0 disables the yield sleep between pulses
	CacheLines   int           // 0 selects defaultCacheLines
}

// System is the top-level driver: it owns the whole component tree
// (MemoryBanks, Cache, MMU, CPU, InterruptController, Clock), loads a
// program image, and runs the tick loop until BRK sets Break or the
// context is cancelled.
type System struct {
	clock      *Clock
	mmu        *MMU
	cache      *Cache
	cpu        *CPU
	interrupts *InterruptController
	console    *Console

	tickInterval time.Duration
	log          *Logger
}

// NewSystem wires every component together: one bounded, single-slot
// channel pair per stripe between the Cache and its MemoryBank.
func NewSystem(cfg SystemConfig, out io.Writer) *System {
	lines := cfg.CacheLines
	if lines <= 0 {
		lines = defaultCacheLines
	}

	sysLog := NewLogger("system", cfg.Debug)
	cacheLog := NewLogger("cache", cfg.Debug)
	cpuLog := NewLogger("cpu", cfg.Debug)
	interruptLog := NewLogger("interrupts", cfg.Debug)

	var bankLinks [stripeCount]bankLink
	var banks [stripeCount]*MemoryBank
	for i := 0; i < stripeCount; i++ {
		toBank := make(chan bankMessage, 1)
		fromBank := make(chan bankMessage, 1)
		bankLinks[i] = bankLink{toBank: toBank, fromBank: fromBank}
		bankLog := NewLogger(fmt.Sprintf("bank%d", i), cfg.Debug)
		banks[i] = newBank(i, toBank, fromBank, bankLog)
	}

	cache := newCache(lines, bankLinks, cacheLog)
	mmu := newMMU(cache, banks)
	interrupts := newInterruptController(interruptLog)
	console := NewConsole(out)
	cpu := NewCPU(mmu, interrupts, console, cpuLog)
	clock := newClock(cpu, banks)

	return &System{
		clock:        clock,
		mmu:          mmu,
		cache:        cache,
		cpu:          cpu,
		interrupts:   interrupts,
		console:      console,
		tickInterval: cfg.TickInterval,
		log:          sysLog,
	}
}

// Interrupts exposes the controller so a caller (the main.go harness, or a
// test building scenario S6) can register devices before Start.
func (s *System) Interrupts() *InterruptController { return s.interrupts }

// Reset zeroes every bank's stripe, preserving an already-installed
// reset vector, per MemoryBank.Reset's contract, and invalidates the
// cache so a line filled before the reset can't shadow the zeroed
// bytes underneath it.
func (s *System) Reset() {
	s.mmu.Reset()
}

// Load resets every bank (so a second Load on a reused System starts
// from clean memory rather than layering on top of a previous run),
// then installs image at addr via the MMU's static load path and
// optionally installs a little-endian reset vector at 0xFFFC/0xFFFD
// pointing at addr.
func (s *System) Load(image []byte, addr uint16, installVector bool) {
	s.Reset()
	s.mmu.StaticLoad(image, addr)
	if installVector {
		vector := []byte{uint8(addr), uint8(addr >> 8)}
		s.mmu.StaticLoad(vector, resetVectorLo)
	}
	s.log.Logf("loaded %d bytes at 0x%04X (vector installed: %v)", len(image), addr, installVector)
}

// Start begins the interrupt controller's device goroutines. Call
// once after registering every InterruptSource and before Run.
func (s *System) Start(ctx context.Context) {
	s.interrupts.Start(ctx)
}

// Close cancels and waits for every interrupt source's goroutine.
func (s *System) Close() error {
	return s.interrupts.Close()
}

// readVector reads a single byte through the cache, pulsing the banks
// between retries until the fill (or hit) resolves. Used only to
// resolve the 16-bit reset vector before the clock starts ticking,
// the same retry shape MMU.MemoryDump uses for its callers.
func (s *System) readVector(addr uint16) uint8 {
	for {
		v, ok, err := s.mmu.Read(addr)
		if err != nil {
			s.mmu.pulse()
			continue
		}
		if ok {
			return v
		}
		s.mmu.pulse()
	}
}

// Run resolves the CPU's initial PC - from the reset vector if one
// was installed, else 0x0000 - then pulses the clock until BRK sets
// Break or ctx is cancelled, sleeping tickInterval between pulses if
// nonzero to yield the scheduler, mirroring the original driver's
// pause between pulses.
func (s *System) Run(ctx context.Context, useResetVector bool) Stats {
	if useResetVector {
		lo := s.readVector(resetVectorLo)
		hi := s.readVector(resetVectorHi)
		s.cpu.PC = wordOf(lo, hi)
	}

	for !s.cpu.Halted() {
		select {
		case <-ctx.Done():
			return s.stats()
		default:
		}
		s.clock.Tick()
		if s.tickInterval > 0 {
			time.Sleep(s.tickInterval)
		}
	}
	return s.stats()
}

func (s *System) stats() Stats {
	hits, accesses := s.cache.Stats()
	var ipc, hitRatio float64
	if s.cpu.Cycles > 0 {
		ipc = float64(s.cpu.Instructions) / float64(s.cpu.Cycles)
	}
	if accesses > 0 {
		hitRatio = float64(hits) / float64(accesses)
	}
	return Stats{
		Cycles:        s.cpu.Cycles,
		Instructions:  s.cpu.Instructions,
		IPC:           ipc,
		CacheHits:     hits,
		CacheAccesses: accesses,
		HitRatio:      hitRatio,
	}
}

// MemoryDump exposes a read-only inspection window for tests and a
// future debug command, forwarding to the MMU.
func (s *System) MemoryDump(lo, hi uint16) []byte {
	return s.mmu.MemoryDump(lo, hi)
}

// PrintStats writes the human-readable run summary.
func (s *System) PrintStats(w io.Writer, stats Stats) {
	fmt.Fprintf(w, "cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "IPC: %.4f\n", stats.IPC)
	fmt.Fprintf(w, "cache hits: %d\n", stats.CacheHits)
	fmt.Fprintf(w, "cache accesses: %d\n", stats.CacheAccesses)
	fmt.Fprintf(w, "hit ratio: %.4f\n", stats.HitRatio)
}
