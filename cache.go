// cache.go - set-associative write-back cache between CPU and banks

/*
sixfiveoh - a cycle-driven 6502-style pipelined emulator core

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/sixfiveoh

License: GPLv3 or later
*/

package main

import "fmt"

// defaultCacheLines is the production line capacity (L in the design).
// Tests exercise smaller capacities (e.g. L=2) to provoke eviction
// without needing dozens of distinct tags.
const defaultCacheLines = 16

// cacheLine holds one byte per stripe, all belonging to the same tag.
type cacheLine struct {
	tag   uint16
	data  [stripeCount]uint8
	dirty bool
	age   int
}

// Cache is a fully-associative (by tag) directory of write-back lines
// sitting between the CPU and the interleaved MemoryBanks. It issues
// stripe-parallel requests over bankLinks and never allocates a line
// on a write miss (write-no-allocate).
type Cache struct {
	capacity  int
	lines     map[uint16]*cacheLine
	banks     [stripeCount]bankLink
	hits      uint64
	accesses  uint64
	log       *Logger
}

func newCache(capacity int, banks [stripeCount]bankLink, log *Logger) *Cache {
	log.Logf("cache created, capacity=%d lines, %d-way interleave", capacity, stripeCount)
	return &Cache{
		capacity: capacity,
		lines:    make(map[uint16]*cacheLine, capacity),
		banks:    banks,
		log:      log,
	}
}

func tagAndIndex(addr uint16) (tag uint16, index int) {
	return addr / stripeCount, int(addr % stripeCount)
}

// bumpAgesBelow increments the age of every present line (other than
// except) whose age is strictly less than threshold, preserving the
// contiguous-prefix invariant when a line moves to age 0.
func (c *Cache) bumpAgesBelow(threshold int, except uint16) {
	for tag, line := range c.lines {
		if tag == except {
			continue
		}
		if line.age < threshold {
			line.age++
		}
	}
}

// drainResponses discards every pending bank response without
// inspecting their kind; used when a cache hit makes any in-flight
// fill or write-back response moot for this access.
func (c *Cache) drainResponses() {
	for i := range c.banks {
		select {
		case <-c.banks[i].fromBank:
		default:
		}
	}
}

// Read implements the hit/miss/conflict protocol. ok=false, err=nil
// means "miss in progress, call again on a later tick." A non-nil
// error is always ErrCacheBusy.
func (c *Cache) Read(addr uint16) (value uint8, ok bool, err error) {
	c.accesses++
	tag, index := tagAndIndex(addr)

	if line, hit := c.lines[tag]; hit {
		value = line.data[index]
		prevAge := line.age
		line.age = 0
		c.bumpAgesBelow(prevAge, tag)
		c.drainResponses()
		c.hits++
		return value, true, nil
	}

	var fill [stripeCount]uint8
	sawRead, sawWrite := false, false
	for i := range c.banks {
		select {
		case msg, chOk := <-c.banks[i].fromBank:
			if !chOk {
				panic(fmt.Sprintf("sixfiveoh: cache stripe %d response channel disconnected", i))
			}
			switch msg.kind {
			case msgReadResponse:
				fill[i] = msg.b
				sawRead = true
			case msgWriteResponse:
				sawWrite = true
			default:
				panic(fmt.Sprintf("sixfiveoh: cache received invalid response from stripe %d", i))
			}
		default:
		}
	}

	switch {
	case sawRead && sawWrite:
		return 0, false, ErrCacheBusy
	case !sawRead:
		for i := range c.banks {
			c.sendRequest(i, bankMessage{kind: msgReadRequest, row: tag})
		}
		return 0, false, nil
	}

	// sawRead && !sawWrite: the fill has landed.
	newLine := &cacheLine{tag: tag, data: fill}
	threshold := len(c.lines)
	if len(c.lines) >= c.capacity {
		oldestTag, oldest := c.oldestLine()
		if oldest.dirty {
			for i := range c.banks {
				c.sendRequest(i, bankMessage{kind: msgWriteRequest, row: oldest.tag, b: oldest.data[i]})
			}
		}
		threshold = oldest.age
		delete(c.lines, oldestTag)
	}
	c.bumpAgesBelow(threshold, tag)
	newLine.age = 0
	c.lines[tag] = newLine
	return newLine.data[index], true, nil
}

func (c *Cache) oldestLine() (uint16, *cacheLine) {
	var oldestTag uint16
	var oldest *cacheLine
	for tag, line := range c.lines {
		if oldest == nil || line.age > oldest.age {
			oldestTag, oldest = tag, line
		}
	}
	if oldest == nil {
		panic("sixfiveoh: cache eviction requested on an empty directory")
	}
	return oldestTag, oldest
}

func (c *Cache) sendRequest(stripe int, msg bankMessage) {
	select {
	case c.banks[stripe].toBank <- msg:
	default:
		panic(fmt.Sprintf("sixfiveoh: cache stripe %d request channel overfull (bank did not drain)", stripe))
	}
}

// Write never allocates a line on a miss. It reports whether the byte
// landed in the cache (true) or was only forwarded to the owning bank
// (false).
func (c *Cache) Write(addr uint16, value uint8) bool {
	c.accesses++
	tag, index := tagAndIndex(addr)

	for i := range c.banks {
		select {
		case msg, chOk := <-c.banks[i].fromBank:
			if !chOk {
				panic(fmt.Sprintf("sixfiveoh: cache stripe %d response channel disconnected", i))
			}
			if msg.kind == msgReadResponse {
				panic(fmt.Sprintf("sixfiveoh: cache received unexpected read response from stripe %d during write", i))
			}
		default:
		}
	}

	if line, hit := c.lines[tag]; hit {
		line.data[index] = value
		line.dirty = true
		prevAge := line.age
		line.age = 0
		c.bumpAgesBelow(prevAge, tag)
		c.hits++
		return true
	}

	c.sendRequest(index, bankMessage{kind: msgWriteRequest, row: tag, b: value})
	return false
}

// Stats returns the running hit/access counters.
func (c *Cache) Stats() (hits, accesses uint64) {
	return c.hits, c.accesses
}

// invalidate drops every line from the directory without writing any
// dirty data back. Used whenever the backing banks are rewritten
// directly rather than through Read/Write - a static image load or a
// bank reset - so a stale cached byte can never shadow the fresh one
// underneath it. Discarding rather than flushing is deliberate: the
// bank contents under a dirty line are about to be (or already were)
// overwritten out from under it, so writing it back would clobber the
// new data instead of preserving anything.
func (c *Cache) invalidate() {
	c.lines = make(map[uint16]*cacheLine, c.capacity)
}
