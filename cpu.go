// cpu.go - register file, instruction register, execution units and
// the per-tick pipeline (execute, decode, fetch, interrupt poll)

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import "fmt"

// StatusFlag names one bit of the NV_BDIZC status byte. Values match
// the 6502 bit layout: N V _ B _ I Z C at bits 7,6,-,4,-,2,1,0.
type StatusFlag uint8

const (
	FlagCarry            StatusFlag = 0x01
	FlagZero             StatusFlag = 0x02
	FlagInterruptDisable StatusFlag = 0x04
	FlagBreak            StatusFlag = 0x10
	FlagOverflow         StatusFlag = 0x40
	FlagNegative         StatusFlag = 0x80
)

// statusReset is the power-on value of the status byte, 0b00100000:
// every flag clear except the unused bit 5.
const statusReset uint8 = 0x20

// instructionRegister is the CPU's single in-flight IR slot. A nil
// *instructionRegister on CPU.ir means the slot is free and fetch may
// run; hasOp1/hasOp2 track which operand bytes decode has collected
// so far, since an instruction's operands can arrive across several
// ticks.
type instructionRegister struct {
	op             Opcode
	op1, op2       uint8
	hasOp1, hasOp2 bool
}

// executionUnit is one of the CPU's two parallel pipeline slots. ip
// is the address of the byte past the instruction's last operand,
// used as BNEr's branch base. For SYS X=3, op1/op2 double as a
// mutable byte cursor that advances every tick a character streams.
type executionUnit struct {
	id   uint8
	ip   uint16
	op   Opcode
	op1  uint8
	op2  uint8
	busy bool
}

// pipeKind enumerates which pipeline stage currently holds the
// cache's single access port, per tick. At most one of
// Fetch/Decode/Execute(id) may be set at a time; Complete marks a
// freshly-completed opcode fetch, the only point the interrupt poll
// is allowed to act.
type pipeKind uint8

const (
	pipeFree pipeKind = iota
	pipeFetch
	pipeDecode
	pipeExecute
	pipeComplete
)

// PipeMemUser is the CPU's pipe_mem_user token: which stage owns the
// cache port this tick, and which execution unit if the stage is
// Execute.
type PipeMemUser struct {
	Kind pipeKind
	Unit uint8
}

// CPU is the register file, instruction register, two execution
// units and the pipeline driving them, sitting on top of an MMU and
// an InterruptController. Its Tick runs execute, decode and fetch in
// that order (oldest in-flight work first), then polls for a pending
// interrupt.
type CPU struct {
	PC uint16
	A  uint8
	X  uint8
	Y  uint8
	P  uint8

	ir    *instructionRegister
	units [2]executionUnit

	// pipe persists across ticks, but only as a retry claim (which
	// stage/unit is waiting on an in-flight cache miss) or as the
	// one-tick Complete signal for the interrupt poll. Whether the
	// port has already been touched *this* tick is tracked
	// separately in pipeClaimed, reset at the top of every Tick, so
	// a stage that completes its cache access this tick still blocks
	// every later stage from touching the port this same tick
	// without that block surviving into the next one.
	pipe        PipeMemUser
	pipeClaimed bool

	mmu        *MMU
	interrupts *InterruptController
	console    *Console
	log        *Logger

	Cycles       uint64
	Instructions uint64
}

// NewCPU builds a CPU with the reset status byte and both execution
// units idle. PC is set by the caller (System) once the load address
// or reset vector is known.
func NewCPU(mmu *MMU, interrupts *InterruptController, console *Console, log *Logger) *CPU {
	log.Logf("cpu created, 2 execution units, status reset to 0x%02X", statusReset)
	c := &CPU{
		P:          statusReset,
		mmu:        mmu,
		interrupts: interrupts,
		console:    console,
		log:        log,
	}
	c.units[0].id = 0
	c.units[1].id = 1
	return c
}

func (c *CPU) flag(f StatusFlag) bool { return c.P&uint8(f) != 0 }

func (c *CPU) setFlag(f StatusFlag, set bool) {
	if set {
		c.P |= uint8(f)
	} else {
		c.P &^= uint8(f)
	}
}

// setNZ derives the Zero and Negative flags from a computed value,
// the shared tail of every ALU/load opcode.
func (c *CPU) setNZ(v uint8) {
	c.setFlag(FlagZero, v == 0)
	c.setFlag(FlagNegative, v&0x80 != 0)
}

// Halted reports whether BRK has set the Break flag, the condition on
// which the driver loop stops (besides a cancelled context).
func (c *CPU) Halted() bool { return c.flag(FlagBreak) }

// Tick advances the whole pipeline by one cycle. Stages run in
// reverse order - execute, then decode, then fetch - so that older
// in-flight work gets first claim on the shared cache port, then the
// interrupt poll runs last.
func (c *CPU) Tick() {
	c.Cycles++
	c.pipeClaimed = false
	for i := range c.units {
		c.runExecute(i)
	}
	c.runDecode()
	c.runFetch()
	c.pollInterrupts()
}

// canClaimPort reports whether the given stage may touch the cache
// this tick: the port must not already have been touched this tick by
// another stage, and must be either unheld or already held by this
// same stage from a retry issued on an earlier tick.
func (c *CPU) canClaimPort(kind pipeKind, unit uint8) bool {
	if c.pipeClaimed {
		return false
	}
	if c.pipe.Kind == pipeFree {
		return true
	}
	return c.pipe.Kind == kind && (kind != pipeExecute || c.pipe.Unit == unit)
}

// releasePort marks a cache access that completed this tick: the
// claim is cleared for the next tick's first stage, but pipeClaimed
// still blocks every later stage from touching the port this same
// tick.
func (c *CPU) releasePort() {
	c.pipe = PipeMemUser{Kind: pipeFree}
	c.pipeClaimed = true
}

// holdPort marks a cache access that must retry: the claim persists
// into the next tick so the same stage/unit picks it back up.
func (c *CPU) holdPort(kind pipeKind, unit uint8) {
	c.pipe = PipeMemUser{Kind: kind, Unit: unit}
	c.pipeClaimed = true
}

// finishUnit frees an execution unit and counts the opcode it just
// ran; every opcode completes exactly once through this path,
// including BNEr and BRK before they flush.
func (c *CPU) finishUnit(u *executionUnit) {
	u.busy = false
	c.Instructions++
}

// flush implements the design's pipeline flush: drop the pending IR
// and free both execution units. In-flight bank traffic is left
// alone; stray responses are drained harmlessly on the cache's next
// access.
func (c *CPU) flush() {
	c.ir = nil
	for i := range c.units {
		c.units[i].busy = false
	}
}

// runExecute drives execution unit idx for this tick, if it's busy.
func (c *CPU) runExecute(idx int) {
	u := &c.units[idx]
	if !u.busy {
		return
	}
	if isMemoryOp(u.op) {
		c.executeMemoryOp(idx)
		return
	}

	switch u.op {
	case OpNOP:
		c.finishUnit(u)
	case OpBRK:
		c.setFlag(FlagBreak, true)
		c.setFlag(FlagInterruptDisable, true)
		c.finishUnit(u)
		c.flush()
		c.log.Logf("BRK at cycle %d, %d instructions executed", c.Cycles, c.Instructions)
	case OpTXA:
		c.A = c.X
		c.setNZ(c.A)
		c.finishUnit(u)
	case OpTYA:
		c.A = c.Y
		c.setNZ(c.A)
		c.finishUnit(u)
	case OpTAX:
		c.X = c.A
		c.setNZ(c.X)
		c.finishUnit(u)
	case OpTAY:
		c.Y = c.A
		c.setNZ(c.Y)
		c.finishUnit(u)
	case OpLDAi:
		c.A = u.op1
		c.setNZ(c.A)
		c.finishUnit(u)
	case OpLDXi:
		c.X = u.op1
		c.setNZ(c.X)
		c.finishUnit(u)
	case OpLDYi:
		c.Y = u.op1
		c.setNZ(c.Y)
		c.finishUnit(u)
	case OpBNEr:
		taken := !c.flag(FlagZero)
		base := u.ip
		offset := u.op1
		c.finishUnit(u)
		if taken {
			c.PC = uint16(int32(base) + int32(int8(offset)))
			c.flush()
		}
	default:
		panic(fmt.Sprintf("sixfiveoh: execute reached unhandled opcode %v", u.op))
	}
}

// executeMemoryOp runs the execute step for an opcode that must touch
// the cache. It requires the port to be free or already held by this
// same unit; a miss or a busy conflict holds the port and retries on
// a later tick rather than freeing the unit.
func (c *CPU) executeMemoryOp(idx int) {
	u := &c.units[idx]
	if !c.canClaimPort(pipeExecute, uint8(idx)) {
		return
	}

	switch u.op {
	case OpSTAa:
		addr := wordOf(u.op1, u.op2)
		c.mmu.Write(addr, c.A)
		c.releasePort()
		c.finishUnit(u)

	case OpLDAa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		c.A = v
		c.setNZ(c.A)
		c.releasePort()
		c.finishUnit(u)

	case OpLDXa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		c.X = v
		c.setNZ(c.X)
		c.releasePort()
		c.finishUnit(u)

	case OpLDYa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		c.Y = v
		c.setNZ(c.Y)
		c.releasePort()
		c.finishUnit(u)

	case OpADCa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		a := c.A
		result := a + v
		carry := result <= a && v != 0
		overflow := (a^result)&(v^result)&0x80 != 0
		c.A = result
		c.setFlag(FlagCarry, carry)
		c.setFlag(FlagOverflow, overflow)
		c.setNZ(c.A)
		c.releasePort()
		c.finishUnit(u)

	case OpCPXa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		c.setNZ(c.X - v)
		c.setFlag(FlagCarry, c.X >= v)
		c.releasePort()
		c.finishUnit(u)

	case OpINCa:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		newVal := v + 1
		c.setNZ(newVal)
		c.mmu.Write(addr, newVal)
		c.releasePort()
		c.finishUnit(u)

	case OpSYS:
		c.execSYS(idx)

	default:
		panic(fmt.Sprintf("sixfiveoh: executeMemoryOp reached unhandled opcode %v", u.op))
	}
}

// execSYS implements the three SYS subservices selected by X. X=3
// streams one byte per tick, reusing op1/op2 as a mutable cursor
// across ticks until it reads a NUL, which it does not print.
func (c *CPU) execSYS(idx int) {
	u := &c.units[idx]
	switch c.X {
	case 1:
		c.console.PutHex(c.Y)
		c.releasePort()
		c.finishUnit(u)

	case 2:
		addr := wordOf(u.op1, u.op2) + uint16(c.Y)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		c.console.PutByte(v)
		c.releasePort()
		c.finishUnit(u)

	case 3:
		addr := wordOf(u.op1, u.op2)
		v, ok, err := c.mmu.Read(addr)
		if err != nil || !ok {
			c.holdPort(pipeExecute, uint8(idx))
			return
		}
		if v == 0 {
			c.releasePort()
			c.finishUnit(u)
			return
		}
		c.console.PutByte(v)
		lo := u.op1 + 1
		hi := u.op2
		if lo == 0 {
			hi++
		}
		u.op1, u.op2 = lo, hi
		c.releasePort()

	default:
		panic(fmt.Sprintf("sixfiveoh: invalid SYS subservice X=%d", c.X))
	}
}

// runDecode advances the pending IR, if any: it tops up missing
// operand bytes one at a time and, once complete and hazard-free,
// dispatches into the first idle execution unit.
func (c *CPU) runDecode() {
	if c.ir == nil {
		return
	}
	op := c.ir.op

	var busyWrites storageSet
	for i := range c.units {
		if c.units[i].busy {
			busyWrites |= writesOf(c.units[i].op)
		}
	}

	if op == OpSYS && busyWrites&storeX != 0 {
		return // X not yet stable; SYS's arity can't be resolved this tick
	}

	n, isSYS := fixedArity(op)
	if isSYS {
		n = sysArity(c.X)
	}

	if n >= 1 && !c.ir.hasOp1 {
		if !c.canClaimPort(pipeDecode, 0) {
			return
		}
		v, ok, err := c.mmu.Read(c.PC)
		if err != nil || !ok {
			c.holdPort(pipeDecode, 0)
			return
		}
		c.ir.op1, c.ir.hasOp1 = v, true
		c.PC++
		c.holdPort(pipeDecode, 0)
		return
	}
	if n >= 2 && !c.ir.hasOp2 {
		if !c.canClaimPort(pipeDecode, 0) {
			return
		}
		v, ok, err := c.mmu.Read(c.PC)
		if err != nil || !ok {
			c.holdPort(pipeDecode, 0)
			return
		}
		c.ir.op2, c.ir.hasOp2 = v, true
		c.PC++
		c.holdPort(pipeDecode, 0)
		return
	}

	if readsOf(op)&busyWrites != 0 {
		return // RAW/WAW hazard against a still-busy unit
	}

	freeIdx := -1
	for i := range c.units {
		if !c.units[i].busy {
			freeIdx = i
			break
		}
	}
	if freeIdx == -1 {
		return // both units busy; dispatch stalls
	}

	u := &c.units[freeIdx]
	u.op = op
	u.op1 = c.ir.op1
	u.op2 = c.ir.op2
	u.ip = c.PC
	u.busy = true
	c.ir = nil
	if c.pipe.Kind == pipeDecode {
		c.releasePort()
	}
}

// runFetch starts a new instruction when the IR slot is free: read
// the opcode byte, validate it, and latch it (with no operands yet).
// A freshly-fetched opcode marks pipe_mem_user Complete, the signal
// the interrupt poll uses to act at most once per instruction. Fetch
// stops once BRK is dispatched or has halted the CPU, so the bytes
// after BRK are never decoded as opcodes.
func (c *CPU) runFetch() {
	if c.ir != nil || c.Halted() {
		return
	}
	for i := range c.units {
		if c.units[i].busy && c.units[i].op == OpBRK {
			return
		}
	}
	if !c.canClaimPort(pipeFetch, 0) {
		return
	}
	v, ok, err := c.mmu.Read(c.PC)
	if err != nil || !ok {
		c.holdPort(pipeFetch, 0)
		return
	}
	op, known := decodeOpcodeByte(v)
	if !known {
		panic(fmt.Sprintf("sixfiveoh: invalid opcode 0x%02X at address 0x%04X", v, c.PC))
	}
	c.ir = &instructionRegister{op: op}
	c.PC++
	c.pipe = PipeMemUser{Kind: pipeComplete}
	c.pipeClaimed = true
}

// pollInterrupts runs at the tail of the tick, only right after a
// fresh opcode fetch (pipe_mem_user == Complete), and only while
// Interrupt-disable is clear. It drains every queued event into the
// heap, services at most one, and emits the owning device's out_buf
// to the console.
func (c *CPU) pollInterrupts() {
	if c.pipe.Kind != pipeComplete {
		return
	}
	c.releasePort()
	if c.flag(FlagInterruptDisable) {
		return
	}
	_, dev, ready := c.interrupts.Ready()
	if !ready {
		return
	}
	c.console.PutByte(dev.OutBuf())
}
