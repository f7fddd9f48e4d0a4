// system_test.go - end-to-end scenarios driving the whole component
// tree through System, the same seam the root main.go harness uses

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// TestScenarioS1HelloWorldConsoleOutput is scenario S1: LDXi 3 selects
// SYS's byte-stream subservice, SYS 0x0306 prints the NUL-terminated
// string that follows it in the image, and BRK halts immediately
// after. The whole string must appear before halt, and the string
// bytes after BRK must never be fetched as opcodes.
func TestScenarioS1HelloWorldConsoleOutput(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	program := []byte{0xA2, 0x03, 0xFF, 0x06, 0x03, 0x00} // LDXi 3; SYS 0x0306; BRK
	program = append(program, []byte("Hello World!")...)
	program = append(program, 0x00)
	sys.Load(program, 0x0300, true)

	stats := sys.Run(context.Background(), true)

	if got := out.String(); got != "Hello World!" {
		t.Fatalf("console output = %q, want %q", got, "Hello World!")
	}
	if stats.Instructions == 0 {
		t.Fatalf("expected at least one instruction to have executed")
	}
}

// TestLoadResetsPreviousRun covers System.Load's reset-before-install
// contract: a second, shorter Load on a reused System must not leave
// any byte behind that the first run wrote past the second image's
// length, whether that byte sits in a MemoryBank or a Cache line
// filled while reading the first program.
func TestLoadResetsPreviousRun(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	first := []byte{0xA9, 0x2A, byte(OpBRK)} // LDAi 0x2A; BRK
	sys.Load(first, 0x0000, false)
	sys.Run(context.Background(), false)
	if sys.cpu.A != 0x2A {
		t.Fatalf("A = 0x%02X after first run, want 0x2A", sys.cpu.A)
	}
	// Priming a read through the cache before the second Load forces
	// the coherence question: without invalidation this address's line
	// would already be cached with the first program's byte.
	if v := sys.MemoryDump(0x0001, 0x0001)[0]; v != 0x2A {
		t.Fatalf("byte at 0x0001 = 0x%02X before reload, want 0x2A", v)
	}

	second := []byte{byte(OpNOP)} // leaves address 0x0001 out of the new image
	sys.Load(second, 0x0000, false)

	got := sys.MemoryDump(0x0000, 0x0001)
	if got[0] != byte(OpNOP) {
		t.Fatalf("byte at 0x0000 = 0x%02X after reload, want 0x%02X", got[0], byte(OpNOP))
	}
	if got[1] != 0x00 {
		t.Fatalf("byte at 0x0001 = 0x%02X after reload, want 0x00: stale data from the first run survived the reset", got[1])
	}
}

// TestSYSPrintHex drives the X=1 subservice end to end: LDXi 1 selects
// it, LDYi loads the byte to print, and SYS takes no operand bytes.
func TestSYSPrintHex(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	program := []byte{0xA2, 0x01, 0xA0, 0x2A, 0xFF, 0x00} // LDXi 1; LDYi 0x2A; SYS; BRK
	sys.Load(program, 0x0000, false)
	sys.Run(context.Background(), false)

	if got := out.String(); got != "2A" {
		t.Fatalf("console output = %q, want %q", got, "2A")
	}
}

// TestSYSPrintCharWithYOffset drives the X=2 subservice: the printed
// byte lives at the operand address plus Y.
func TestSYSPrintCharWithYOffset(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	image := make([]byte, 0x0202)
	// LDXi 2; LDYi 1; SYS 0x0200; BRK
	copy(image, []byte{0xA2, 0x02, 0xA0, 0x01, 0xFF, 0x00, 0x02, 0x00})
	image[0x0201] = 'Z'
	sys.Load(image, 0x0000, false)
	sys.Run(context.Background(), false)

	if got := out.String(); got != "Z" {
		t.Fatalf("console output = %q, want %q", got, "Z")
	}
}

// TestTickInvariantsHoldThroughoutRun pulses the clock by hand through
// a full program and checks the structural invariants after every
// tick: counters stay ordered, every busy unit holds a decodable
// opcode, and the cache's LRU ages stay a permutation.
func TestTickInvariantsHoldThroughoutRun(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	program := []byte{0xA2, 0x03, 0xFF, 0x06, 0x03, 0x00} // LDXi 3; SYS 0x0306; BRK
	program = append(program, []byte("Hi")...)
	program = append(program, 0x00)
	sys.Load(program, 0x0300, true)

	lo := sys.readVector(resetVectorLo)
	hi := sys.readVector(resetVectorHi)
	sys.cpu.PC = wordOf(lo, hi)

	for i := 0; i < 2000 && !sys.cpu.Halted(); i++ {
		sys.clock.Tick()

		if sys.cpu.Instructions > sys.cpu.Cycles {
			t.Fatalf("tick %d: instructions %d exceeds cycles %d", i, sys.cpu.Instructions, sys.cpu.Cycles)
		}
		hits, accesses := sys.cache.Stats()
		if hits > accesses {
			t.Fatalf("tick %d: hits %d exceeds accesses %d", i, hits, accesses)
		}
		for _, u := range sys.cpu.units {
			if !u.busy {
				continue
			}
			if _, known := decodeOpcodeByte(uint8(u.op)); !known {
				t.Fatalf("tick %d: busy unit %d holds undecodable opcode 0x%02X", i, u.id, uint8(u.op))
			}
		}
		if sys.cpu.pipe.Kind > pipeComplete {
			t.Fatalf("tick %d: pipe_mem_user out of range: %d", i, sys.cpu.pipe.Kind)
		}
		assertAgePermutation(t, sys.cache)
	}
	if !sys.cpu.Halted() {
		t.Fatalf("program did not halt within 2000 ticks")
	}
	if got := out.String(); got != "Hi" {
		t.Fatalf("console output = %q, want %q", got, "Hi")
	}
}

// fakeKeySource is a minimal InterruptSource standing in for the real
// ConsoleKeyboard: it raises exactly one event as soon as Run starts,
// then idles until its context is cancelled.
type fakeKeySource struct {
	outByte uint8
	sent    chan struct{}
}

func (f *fakeKeySource) OutBuf() uint8 { return f.outByte }

func (f *fakeKeySource) Specs() InterruptSpecs {
	return InterruptSpecs{Name: "fakekey", IRQ: 1, Priority: 10}
}

func (f *fakeKeySource) Run(ctx context.Context, events chan<- InterruptEvent) error {
	events <- InterruptEvent{Name: "fakekey", IRQ: 1, Priority: 10}
	close(f.sent)
	<-ctx.Done()
	return nil
}

// TestScenarioS6KeyboardInterruptDelivery is scenario S6: a registered
// device's queued event is delivered to the console within the run of
// a program that otherwise never touches the console itself.
func TestScenarioS6KeyboardInterruptDelivery(t *testing.T) {
	var out bytes.Buffer
	sys := NewSystem(SystemConfig{}, &out)

	dev := &fakeKeySource{outByte: 'k', sent: make(chan struct{})}
	sys.Interrupts().RegisterDevice(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.Start(ctx)
	defer sys.Close()

	<-dev.sent // the event is queued before the clock starts consuming it

	program := make([]byte, 0, 51)
	for i := 0; i < 50; i++ {
		program = append(program, byte(OpNOP))
	}
	program = append(program, byte(OpBRK))
	sys.Load(program, 0x0300, true)

	sys.Run(ctx, true)

	if !strings.ContainsRune(out.String(), 'k') {
		t.Fatalf("console output %q does not contain the delivered interrupt byte", out.String())
	}
}
