// ascii.go - byte<->rune translation table for console I/O

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

// asciiEncoder maps a machine byte to the rune printed on the console.
// Printable ASCII and the common control characters used by the demo
// programs are covered; everything else is absent on purpose, which
// makes asciiEncode's "missing mapping" fallback exercised by anyone
// who feeds the emulator a byte outside this small table. The table's
// exact contents are an external asset per the emulator's own design
// (a real build would load it from a font or codepage file); this one
// is just large enough to run the bundled demo programs.
var asciiEncoder = buildASCIIEncoder()

func buildASCIIEncoder() map[uint8]rune {
	m := make(map[uint8]rune, 100)
	for b := uint8(0x20); b < 0x7F; b++ {
		m[b] = rune(b)
	}
	m[0x00] = 0x00
	m[0x0A] = '\n'
	m[0x0D] = '\r'
	return m
}

// asciiDecoder is the inverse mapping, used by input devices (the
// console keyboard) translating a host keypress into a machine byte.
var asciiDecoder = buildASCIIDecoder()

func buildASCIIDecoder() map[rune]uint8 {
	m := make(map[rune]uint8, len(asciiEncoder))
	for b, r := range asciiEncoder {
		m[r] = b
	}
	return m
}

// asciiEncode translates a machine byte to its console rune. A byte
// with no entry decodes to NUL, per the emulator's error-handling
// policy for an unmapped console byte.
func asciiEncode(b uint8) rune {
	if r, ok := asciiEncoder[b]; ok {
		return r
	}
	return 0x00
}

// asciiDecode translates a host keypress to the machine byte a device
// stores in its output buffer. An unmapped rune decodes to 0x00.
func asciiDecode(r rune) uint8 {
	if b, ok := asciiDecoder[r]; ok {
		return b
	}
	return 0x00
}
