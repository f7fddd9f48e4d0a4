// errors.go - sentinel errors for transient cache conditions

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import "errors"

// ErrCacheBusy is returned by Cache.Read when a fill response and a
// write-back acknowledgement from the banks arrive on the same tick.
// The caller must retry on a later tick; it is never returned for a
// plain cache miss in progress (that case returns ok=false, err=nil).
var ErrCacheBusy = errors.New("cache: busy, retry next tick")
