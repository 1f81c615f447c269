// Copyright © 2018 One Concern

package rand

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandLetterBytes(t *testing.T) {
	name := LetterBytes(20)
	assert.Len(t, name, 20)
	for _, b := range name {
		assert.True(t, (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9'))
	}
}

func TestLines(t *testing.T) {
	lines := Lines(50, 10)
	assert.Equal(t, 50, bytes.Count(lines, []byte("\n")))
	for _, line := range bytes.Split(bytes.TrimSuffix(lines, []byte("\n")), []byte("\n")) {
		assert.LessOrEqual(t, len(line), 10)
	}
	assert.Len(t, Bytes(33), 33)
}

func benchmarkRandBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = randBytes(size)
	}
}

func BenchmarkRandBytes100(b *testing.B)     { benchmarkRandBytes(b, 100) }
func BenchmarkRandBytes1000000(b *testing.B) { benchmarkRandBytes(b, 1000000) }

func benchmarkRandLetterBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = randLetterBytes(size)
	}
}

func BenchmarkRandLetterBytes100(b *testing.B)     { benchmarkRandLetterBytes(b, 100) }
func BenchmarkRandLetterBytes1000000(b *testing.B) { benchmarkRandLetterBytes(b, 1000000) }
