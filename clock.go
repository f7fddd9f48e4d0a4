// clock.go - composes the CPU and memory banks and pulses every
// device exactly once per tick

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

// Clock composes a CPU with its interleaved MemoryBanks and advances
// every device exactly once per tick, cpu first so the cache-port
// tug-of-war between pipeline stages resolves before the banks
// service whatever requests that resolution produced.
type Clock struct {
	cpu   *CPU
	banks [stripeCount]*MemoryBank
}

func newClock(cpu *CPU, banks [stripeCount]*MemoryBank) *Clock {
	return &Clock{cpu: cpu, banks: banks}
}

// Tick advances the CPU first, then every bank, so each tick's bank
// work is exactly what this tick's pipeline stages requested.
func (clk *Clock) Tick() {
	clk.cpu.Tick()
	for _, b := range clk.banks {
		b.Tick()
	}
}
