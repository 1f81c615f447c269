// Copyright © 2018 One Concern

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapLeavesSentinelUntouched(t *testing.T) {
	sentinel := New("sentinel")
	cause := fmt.Errorf("remote said no")

	wrapped := sentinel.Wrap(cause)
	require.NotSame(t, sentinel, wrapped)

	assert.Nil(t, sentinel.Unwrap())
	assert.Equal(t, "sentinel", sentinel.Error())
	assert.Equal(t, "sentinel: remote said no", wrapped.Error())

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))

	again := wrapped.WrapMessage("attempt %d", 2)
	assert.True(t, Is(again, sentinel))
	assert.Equal(t, "sentinel: attempt 2", again.Error())
}

func TestAs(t *testing.T) {
	var target *Error
	err := fmt.Errorf("context: %w", New("inner"))
	require.True(t, As(err, &target))
	assert.Equal(t, "inner", target.Error())
}
