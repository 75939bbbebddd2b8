// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package random

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/grailbio/bitarray/log"
)

// An EntropySource supplies seed material for engines constructed
// without an explicit seed. Tests inject a fixed source to make
// self-seeded engines reproducible.
type EntropySource interface {
	Uint64() uint64
}

// SystemEntropy reads from the operating system's secure random number
// generator.
type SystemEntropy struct{}

// Uint64 implements EntropySource. If the system source fails, the
// current time is used instead.
func (SystemEntropy) Uint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		log.Error.Printf("random: system entropy unavailable, seeding from clock: %v", err)
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(buf[:])
}

const seedMixer = 0x5DEECE66D2545F49

// uniquifier separates seeds generated in quick succession from a
// source that repeats itself.
var uniquifier uint64 = 0x1D8E4E27C47D124F

// GenerateSeed combines a word from src with a fixed mixing constant
// and a process-wide counter, so that two calls never return the same
// seed for the same entropy.
func GenerateSeed(src EntropySource) uint64 {
	u := atomic.AddUint64(&uniquifier, 0x9E3779B97F4A7C15)
	return src.Uint64() ^ seedMixer ^ mix(u)
}
