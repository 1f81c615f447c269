// Copyright © 2018 One Concern

// Package rand generates random payloads for tests.
package rand

import (
	"bytes"
	"math/rand"
	"sync"
	"time"
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return randBytes(n)
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	return randLetterBytes(n)
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(randLetterBytes(n))
}

// Lines returns count lines of random letters, each at most width letters long
// and terminated by a newline. Empty lines may occur.
func Lines(count, width int) []byte {
	var buf bytes.Buffer
	for i := 0; i < count; i++ {
		buf.Write(randLetterBytes(Intn(width + 1)))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Intn returns a random int in [0, n)
func Intn(n int) int {
	onceSource.Do(seed)
	randMutex.Lock()
	defer randMutex.Unlock()
	return rgen.Intn(n)
}

var (
	onceSource  sync.Once
	rgen        *rand.Rand
	onceLetters sync.Once
	randMutex   sync.Mutex
)

func seed() {
	src := rand.NewSource(time.Now().UnixNano())
	rgen = rand.New(src) // #nosec
}

func randBytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock() // the mutex doesn't add any significant time
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

var letters []byte

func makeLetters() {
	// adds "a" to pad over 256 locations (0-9 U a-z makes up to 252 only and we want to cover the range of uint8)
	// so "a" is slightly more frequent than other signs. The trade-off here is speed over exact randomness
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
}

func randLetterBytes(n int) []byte {
	onceLetters.Do(makeLetters)
	buf := randBytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}
