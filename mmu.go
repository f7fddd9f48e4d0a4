// mmu.go - address-space facade over the Cache and MemoryBanks

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

// MMU is the CPU-facing entry point into memory: a single Cache in
// front of stripeCount interleaved MemoryBanks. The CPU pipeline never
// talks to the Cache or the banks directly, so every contention and
// hazard rule lives in one place.
type MMU struct {
	cache *Cache
	banks [stripeCount]*MemoryBank
}

func newMMU(cache *Cache, banks [stripeCount]*MemoryBank) *MMU {
	return &MMU{cache: cache, banks: banks}
}

// Read proxies straight to the Cache; see Cache.Read for the
// hit/miss/conflict contract.
func (m *MMU) Read(addr uint16) (uint8, bool, error) {
	return m.cache.Read(addr)
}

// Write proxies straight to the Cache; see Cache.Write.
func (m *MMU) Write(addr uint16, value uint8) bool {
	return m.cache.Write(addr, value)
}

// pulse advances every bank by one tick. MemoryDump uses this to drive
// the request/response protocol to completion outside of the normal
// CPU clock, since it can run before or after the pipeline is ticking.
func (m *MMU) pulse() {
	for _, b := range m.banks {
		b.Tick()
	}
}

// StaticLoad installs bytes starting at startAddr directly into the
// MemoryBanks, bypassing the cache entirely: a program load is not a
// cache-coherent event, it flashes RAM before the pipeline's first
// tick. It invalidates the cache afterward so a line left over from an
// earlier run can never shadow the freshly written bytes underneath
// it.
func (m *MMU) StaticLoad(bytes []byte, startAddr uint16) {
	for i, b := range bytes {
		addr := startAddr + uint16(i)
		stripe := int(addr % stripeCount)
		row := addr / stripeCount
		m.banks[stripe].ram[row] = b
	}
	m.cache.invalidate()
}

// Reset zeroes every bank (preserving an already-installed reset
// vector, per MemoryBank.Reset) and invalidates the cache, so a
// subsequent read observes the freshly-zeroed memory rather than a
// line cached before the reset.
func (m *MMU) Reset() {
	for _, b := range m.banks {
		b.Reset()
	}
	m.cache.invalidate()
}

// MemoryDump reads an inclusive [lo, hi] range through the cache for
// inspection (debugging, test assertions), pulsing the banks after
// every read until each byte resolves. Pulsing on hits too keeps a
// dirty eviction's write-back requests from sitting in the single-slot
// bank channels across a run of hits, where the next miss's fill
// requests would find them still queued.
func (m *MMU) MemoryDump(lo, hi uint16) []byte {
	out := make([]byte, 0, int(hi-lo)+1)
	for addr := uint32(lo); addr <= uint32(hi); addr++ {
		for {
			v, ok, err := m.Read(uint16(addr))
			m.pulse()
			if err != nil {
				continue
			}
			if ok {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
