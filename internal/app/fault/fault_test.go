package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"chatline/internal/app/fault"
)

func TestKindOf(t *testing.T) {
	req := require.New(t)

	req.Equal(fault.NotFound, fault.KindOf(fault.New(fault.NotFound, "gone")))
	req.Equal(fault.Unavailable, fault.KindOf(errors.New("raw storage error")))

	wrapped := fmt.Errorf("while handling request: %w", fault.New(fault.Forbidden, "nope"))
	req.Equal(fault.Forbidden, fault.KindOf(wrapped))
}

func TestWrapPreservesCause(t *testing.T) {
	req := require.New(t)

	cause := errors.New("connection reset")
	err := fault.Wrap(fault.Unavailable, "store unreachable", cause)
	req.ErrorIs(err, cause)
	req.Contains(err.Error(), "store unreachable")
	req.Contains(err.Error(), "connection reset")
}

func TestIsKind(t *testing.T) {
	req := require.New(t)

	req.True(fault.IsKind(fault.New(fault.Conflict, "raced"), fault.Conflict))
	req.False(fault.IsKind(fault.New(fault.Conflict, "raced"), fault.NotFound))
	req.False(fault.IsKind(nil, fault.Unavailable))
}
