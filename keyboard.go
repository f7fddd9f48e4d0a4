// keyboard.go - console keyboard interrupt source

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
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/term"
)

// keyboardIRQ and keyboardPriority are this build's only interrupt
// source; a second device would need its own IRQ line and priority.
const (
	keyboardIRQ      uint8 = 0
	keyboardPriority uint8 = 0
)

// ConsoleKeyboard is an InterruptSource backed by a single out_buf
// register: PushByte queues a key, Run stores it in out_buf and raises
// an interrupt, and OutBuf is read by the CPU's interrupt handler.
type ConsoleKeyboard struct {
	outBuf atomic.Uint32
	input  chan uint8
	log    *Logger
}

// NewConsoleKeyboard creates an idle keyboard device. Bytes reach it
// only through PushByte, called either by tests or by a TerminalFeeder
// reading real stdin.
func NewConsoleKeyboard(log *Logger) *ConsoleKeyboard {
	return &ConsoleKeyboard{input: make(chan uint8, 64), log: log}
}

// OutBuf returns the most recently pushed byte.
func (k *ConsoleKeyboard) OutBuf() uint8 {
	return uint8(k.outBuf.Load())
}

// Specs reports this device's fixed IRQ line and priority.
func (k *ConsoleKeyboard) Specs() InterruptSpecs {
	return InterruptSpecs{Name: "keyboard", IRQ: keyboardIRQ, Priority: keyboardPriority}
}

// PushByte queues b for the Run loop, which stores it in out_buf and
// raises an interrupt for it. A byte pushed while the 64-byte queue is
// full is dropped. Safe to call from any goroutine, including a
// TerminalFeeder reading stdin.
func (k *ConsoleKeyboard) PushByte(b uint8) {
	select {
	case k.input <- b:
	default:
		k.log.Logf("keyboard: input buffer full, dropping byte 0x%02X", b)
	}
}

// Run blocks until ctx is canceled, turning each pushed byte into one
// InterruptEvent on the shared events channel.
func (k *ConsoleKeyboard) Run(ctx context.Context, events chan<- InterruptEvent) error {
	specs := k.Specs()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-k.input:
			k.outBuf.Store(uint32(b))
			select {
			case events <- InterruptEvent{Name: specs.Name, IRQ: specs.IRQ, Priority: specs.Priority}:
			default:
				panic("sixfiveoh: interrupt event queue overfull")
			}
		}
	}
}

// TerminalFeeder puts the real terminal into raw mode and forwards
// every keypress into a ConsoleKeyboard, so an interactive run behaves
// like a real keyboard rather than a scripted one. Only ever
// constructed from the root main.go harness, never from tests.
type TerminalFeeder struct {
	kb           *ConsoleKeyboard
	fd           int
	oldTermState *term.State
	nonblockSet  bool
}

// NewTerminalFeeder wraps the given keyboard with a raw-stdin reader.
func NewTerminalFeeder(kb *ConsoleKeyboard) *TerminalFeeder {
	return &TerminalFeeder{kb: kb}
}

// Start puts stdin into raw, non-blocking mode and begins forwarding
// bytes in a goroutine until ctx is canceled.
func (f *TerminalFeeder) Start(ctx context.Context) {
	f.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(f.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sixfiveoh: failed to set raw mode: %v\n", err)
		return
	}
	f.oldTermState = oldState

	if err := syscall.SetNonblock(f.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "sixfiveoh: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(f.fd, f.oldTermState)
		f.oldTermState = nil
		return
	}
	f.nonblockSet = true

	go func() {
		buf := make([]byte, 1)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := syscall.Read(f.fd, buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' {
					b = '\n'
				}
				f.kb.PushByte(asciiDecode(rune(b)))
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

// Stop restores the terminal to its pre-raw state.
func (f *TerminalFeeder) Stop() {
	if f.nonblockSet {
		_ = syscall.SetNonblock(f.fd, false)
		f.nonblockSet = false
	}
	if f.oldTermState != nil {
		_ = term.Restore(f.fd, f.oldTermState)
		f.oldTermState = nil
	}
}
