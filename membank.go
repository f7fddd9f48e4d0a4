// membank.go - one interleaved stripe of RAM

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import "fmt"

// stripeCount is the number of interleaved memory banks (N in the
// design). Address a lives in stripe a%stripeCount at row a/stripeCount.
const stripeCount = 8

// bankRows is the number of addressable rows inside one bank: the
// 64KB address space split stripeCount ways.
const bankRows = 0x10000 / stripeCount

// resetVectorLo and resetVectorHi are the two bytes of the 16-bit
// little-endian reset vector, preserved across MemoryBank.Reset.
const (
	resetVectorLo = 0xFFFC
	resetVectorHi = 0xFFFD
)

type bankMsgKind uint8

const (
	msgReadRequest bankMsgKind = iota
	msgWriteRequest
	msgReadResponse
	msgWriteResponse
)

// bankMessage is the single message shape carried on the bounded,
// single-slot channels between a Cache and its MemoryBanks. Only the
// fields relevant to msgKind are meaningful.
type bankMessage struct {
	kind bankMsgKind
	row  uint16
	b    uint8
}

// bankLink is one stripe's bidirectional channel pair as seen from the
// Cache side: requests go out, responses come back. Both directions
// are single-slot bounded, matching the hardware's one-request,
// one-response-in-flight protocol.
type bankLink struct {
	toBank   chan<- bankMessage
	fromBank <-chan bankMessage
}

// MemoryBank owns one interleaved stripe of the 64KB address space and
// services at most one request per tick.
type MemoryBank struct {
	stripe int
	ram    [bankRows]uint8
	inbox  <-chan bankMessage
	outbox chan<- bankMessage
	log    *Logger
}

// newBank constructs a bank for the given stripe index, wired to the
// channel pair NewSystem (or a test) hands it.
func newBank(stripe int, inbox <-chan bankMessage, outbox chan<- bankMessage, log *Logger) *MemoryBank {
	log.Logf("bank %d created, %d addressable rows", stripe, bankRows)
	return &MemoryBank{stripe: stripe, inbox: inbox, outbox: outbox, log: log}
}

// Tick services at most one pending request from the Cache. An empty
// inbox is normal; failing to post a response onto a full outbox is a
// protocol bug and is fatal, since the Cache is required to drain
// responses before issuing new requests.
func (b *MemoryBank) Tick() {
	select {
	case msg, ok := <-b.inbox:
		if !ok {
			panic(fmt.Sprintf("sixfiveoh: bank %d request channel disconnected", b.stripe))
		}
		b.handle(msg)
	default:
	}
}

func (b *MemoryBank) handle(msg bankMessage) {
	var resp bankMessage
	switch msg.kind {
	case msgReadRequest:
		resp = bankMessage{kind: msgReadResponse, b: b.ram[msg.row]}
	case msgWriteRequest:
		b.ram[msg.row] = msg.b
		resp = bankMessage{kind: msgWriteResponse}
	default:
		panic(fmt.Sprintf("sixfiveoh: bank %d received invalid request kind %d", b.stripe, msg.kind))
	}
	select {
	case b.outbox <- resp:
	default:
		panic(fmt.Sprintf("sixfiveoh: bank %d response channel overfull (cache did not drain)", b.stripe))
	}
}

// Reset zeroes every byte of the stripe except any byte that belongs
// to the 16-bit reset vector at 0xFFFC/0xFFFD, so a fresh program load
// doesn't clobber an already-installed entry point.
func (b *MemoryBank) Reset() {
	for row := range b.ram {
		addr := uint16(row)*stripeCount + uint16(b.stripe)
		if addr == resetVectorLo || addr == resetVectorHi {
			continue
		}
		b.ram[row] = 0x00
	}
}
