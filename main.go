// main.go - command-line harness: loads a binary image, runs the
// clock to halt, and prints the run's statistics

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"
)

func main() {
	loadPath := flag.String("load", "", "path to a raw binary image to flash into RAM")
	org := flag.String("org", "0x0000", "load address (hex with 0x prefix, or decimal)")
	vector := flag.String("vector", "", "if set, installs a little-endian reset vector at 0xFFFC pointing at -org")
	debug := flag.Bool("debug", false, "emit a timestamped debug line per component")
	rawStdin := flag.Bool("raw-stdin", false, "put the terminal in raw mode and register the console keyboard device")
	tickMicros := flag.Int("tick-micros", 0, "sleep this many microseconds between clock ticks (0 disables the yield)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sixfiveoh -load <image> [options]\n\nRuns a flat binary image on the pipelined 6502-style core until BRK.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *loadPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	orgAddr, err := parseAddr(*org)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sixfiveoh: bad -org: %v\n", err)
		os.Exit(1)
	}

	installVector := *vector != ""
	if installVector {
		vecAddr, err := parseAddr(*vector)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sixfiveoh: bad -vector: %v\n", err)
			os.Exit(1)
		}
		if vecAddr != orgAddr {
			fmt.Fprintf(os.Stderr, "sixfiveoh: -vector must equal -org (the vector always points at the load address)\n")
			os.Exit(1)
		}
	}

	image, err := os.ReadFile(*loadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sixfiveoh: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := SystemConfig{
		Debug:        *debug,
		TickInterval: time.Duration(*tickMicros) * time.Microsecond,
	}
	sys := NewSystem(cfg, os.Stdout)

	var feeder *TerminalFeeder
	if *rawStdin {
		kb := NewConsoleKeyboard(NewLogger("keyboard", *debug))
		sys.Interrupts().RegisterDevice(kb)
		feeder = NewTerminalFeeder(kb)
	}

	sys.Load(image, orgAddr, installVector)
	sys.Start(ctx)
	if feeder != nil {
		feeder.Start(ctx)
	}

	stats := sys.Run(ctx, installVector)

	if feeder != nil {
		feeder.Stop()
	}
	stop()
	_ = sys.Close()

	sys.PrintStats(os.Stdout, stats)
}

// parseAddr accepts a 16-bit address in decimal or 0x-prefixed hex.
func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
