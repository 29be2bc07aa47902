package oracleerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(TestFailed, "assertion failed")
	require.True(t, errors.Is(err, Sentinel(TestFailed)))
	require.False(t, errors.Is(err, Sentinel(Timeout)))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := New(NoRunner, "python")
	wrapped := Wrap(Internal, "admission translation", cause)

	require.ErrorIs(t, wrapped, cause)
	var asErr *Error
	require.True(t, errors.As(wrapped, &asErr))
	require.Equal(t, Internal, asErr.Kind)
}

func TestWithDetail(t *testing.T) {
	err := New(CoherencyTooLow, "below threshold").WithDetail("score", 0.4).WithDetail("threshold", 0.6)
	require.Equal(t, 0.4, err.Detail["score"])
	require.Equal(t, 0.6, err.Detail["threshold"])
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(New(DuplicateName, "add"))
	require.True(t, ok)
	require.Equal(t, DuplicateName, k)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}
