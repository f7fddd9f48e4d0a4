// console.go - the byte-at-a-time console sink for SYS output and
// interrupt-delivered keystrokes

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import (
	"bufio"
	"fmt"
	"io"
)

// Console wraps a buffered writer and flushes after every byte, per
// the external-interfaces rule that console output is never batched
// silently: "bytes are printed and the stream flushed after each
// byte."
type Console struct {
	w *bufio.Writer
}

// NewConsole wraps w (os.Stdout in the real harness, a bytes.Buffer
// in tests) for byte-at-a-time output.
func NewConsole(w io.Writer) *Console {
	return &Console{w: bufio.NewWriter(w)}
}

// PutByte translates a raw machine byte through the ASCII table and
// emits it, used by SYS X=2/X=3 and by the interrupt poll delivering a
// device's out_buf.
func (c *Console) PutByte(b uint8) {
	c.w.WriteRune(asciiEncode(b))
	c.w.Flush()
}

// PutHex prints a byte as uppercase hex with no zero padding (0x05
// prints "5"), the SYS X=1 subservice's only output shape.
func (c *Console) PutHex(b uint8) {
	fmt.Fprintf(c.w, "%X", b)
	c.w.Flush()
}
