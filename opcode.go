// opcode.go - opcode byte map, arities and the data-hazard lattice

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import "fmt"

// Opcode is the fixed subset of 6502 mnemonics this core decodes, plus
// the synthetic SYS instruction. The underlying value is the opcode's
// wire byte, so decodeOpcodeByte is just a validated cast.
type Opcode uint8

const (
	OpBRK  Opcode = 0x00
	OpLDAi Opcode = 0xA9
	OpLDAa Opcode = 0xAD
	OpSTAa Opcode = 0x8D
	OpTXA  Opcode = 0x8A
	OpTYA  Opcode = 0x98
	OpADCa Opcode = 0x6D
	OpLDXi Opcode = 0xA2
	OpLDXa Opcode = 0xAE
	OpTAX  Opcode = 0xAA
	OpLDYi Opcode = 0xA0
	OpLDYa Opcode = 0xAC
	OpTAY  Opcode = 0xA8
	OpNOP  Opcode = 0xEA
	OpCPXa Opcode = 0xEC
	OpBNEr Opcode = 0xD0
	OpINCa Opcode = 0xEE
	OpSYS  Opcode = 0xFF
)

var opcodeNames = map[Opcode]string{
	OpBRK: "BRK", OpLDAi: "LDAi", OpLDAa: "LDAa", OpSTAa: "STAa",
	OpTXA: "TXA", OpTYA: "TYA", OpADCa: "ADCa", OpLDXi: "LDXi",
	OpLDXa: "LDXa", OpTAX: "TAX", OpLDYi: "LDYi", OpLDYa: "LDYa",
	OpTAY: "TAY", OpNOP: "NOP", OpCPXa: "CPXa", OpBNEr: "BNEr",
	OpINCa: "INCa", OpSYS: "SYS",
}

// String renders the opcode's mnemonic for diagnostics; an opcode that
// doesn't appear in opcodeNames can only be reached via an unchecked
// cast and its presence in a panic message is itself the bug report.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", uint8(op))
}

// decodeOpcodeByte validates a fetched byte against the fixed opcode
// set. Every byte not in opcodeNames is invalid and fatal to the
// fetch stage, per the error-handling design.
func decodeOpcodeByte(b uint8) (Opcode, bool) {
	op := Opcode(b)
	_, known := opcodeNames[op]
	return op, known
}

// fixedArity reports how many operand bytes follow an opcode, or
// isSYS=true for SYS, whose arity can only be resolved once X is
// stable (see sysArity).
func fixedArity(op Opcode) (n int, isSYS bool) {
	switch op {
	case OpTXA, OpTYA, OpTAX, OpTAY, OpNOP, OpBRK:
		return 0, false
	case OpLDAi, OpLDXi, OpLDYi, OpBNEr:
		return 1, false
	case OpLDAa, OpSTAa, OpADCa, OpLDXa, OpLDYa, OpCPXa, OpINCa:
		return 2, false
	case OpSYS:
		return 0, true
	default:
		panic(fmt.Sprintf("sixfiveoh: fixedArity called on unknown opcode %v", op))
	}
}

// sysArity resolves SYS's true operand count from the live X register:
// X=1 (print Y as hex) takes no operand bytes; every other subservice
// (including invalid ones, which fail later at execute) carries the
// 16-bit address operand.
func sysArity(x uint8) int {
	if x == 1 {
		return 0
	}
	return 2
}

// storageSet is a bitset over the hazard lattice's six categories:
// the three general-purpose registers, the zero flag, the program
// counter, and a single coarse token standing in for all of memory.
type storageSet uint8

const (
	storeA storageSet = 1 << iota
	storeX
	storeY
	storeZ
	storePC
	storeMemory
)

// writesOf is an opcode's affected_storage: the registers a busy
// execution unit running this opcode may still mutate before it
// frees. Decode consults the union of this across both units to
// detect RAW/WAW hazards and to know when SYS's arity is safe to
// resolve.
func writesOf(op Opcode) storageSet {
	switch op {
	case OpLDAi, OpLDAa, OpTXA, OpTYA, OpADCa:
		return storeA | storeZ
	case OpSTAa:
		return storeMemory
	case OpLDXi, OpLDXa, OpTAX:
		return storeX | storeZ
	case OpLDYi, OpLDYa, OpTAY:
		return storeY | storeZ
	case OpCPXa:
		return storeZ
	case OpBNEr:
		return storePC
	case OpINCa:
		return storeMemory | storeZ
	default: // SYS, NOP, BRK
		return 0
	}
}

// readsOf is an opcode's dependent_storage: what it needs to already
// be settled before it may dispatch. Decode stalls dispatch while
// this intersects the busy units' writesOf.
func readsOf(op Opcode) storageSet {
	switch op {
	case OpLDAa:
		return storeMemory
	case OpTXA:
		return storeX
	case OpTYA:
		return storeY
	case OpADCa:
		return storeA | storeMemory
	case OpSTAa:
		return storeA
	case OpLDXa:
		return storeMemory
	case OpTAX:
		return storeA
	case OpLDYa:
		return storeMemory
	case OpTAY:
		return storeA
	case OpCPXa:
		return storeX | storeMemory
	case OpBNEr:
		return storeZ
	case OpINCa:
		return storeMemory
	case OpSYS:
		return storeX | storeY | storeMemory
	default: // LDAi, LDXi, LDYi, NOP, BRK
		return 0
	}
}

// isMemoryOp separates the opcodes whose execute step must contend
// for the cache port (everything touching RAM or the console's
// memory-mapped SYS reads) from the ones that complete against
// registers alone in a single tick regardless of pipe_mem_user.
func isMemoryOp(op Opcode) bool {
	switch op {
	case OpLDAa, OpSTAa, OpADCa, OpLDXa, OpLDYa, OpCPXa, OpINCa, OpSYS:
		return true
	default:
		return false
	}
}

func wordOf(lo, hi uint8) uint16 {
	return uint16(lo) | uint16(hi)<<8
}
