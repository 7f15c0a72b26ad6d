package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormatting(t *testing.T) {
	plain := New(CoopNotFound, "")
	assert.Equal(t, "coop_not_found", plain.Error())

	withDetail := New(CoopNotFound, "agent-1")
	assert.Equal(t, "coop_not_found: agent-1", withDetail.Error())

	cause := fmt.Errorf("boom")
	wrapped := Wrap(BindFailed, "dispatcher-a", cause)
	assert.Equal(t, "bind_failed: dispatcher-a: boom", wrapped.Error())
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := fmt.Errorf("underlying")
	wrapped := Wrap(RegistrationFailed, "", cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
	assert.Nil(t, errors.Unwrap(New(RegistrationFailed, "")))
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := New(DuplicateCoopName, "coop-a")
	assert.True(t, errors.Is(err, New(DuplicateCoopName, "coop-b")))
	assert.False(t, errors.Is(err, New(CoopNotFound, "")))
	assert.False(t, errors.Is(err, fmt.Errorf("unrelated")))
}

func TestErrorsAsUnwrapsWrappedChain(t *testing.T) {
	inner := New(ShuttingDown, "registry")
	outer := fmt.Errorf("deregister failed: %w", inner)

	var target *Error
	require := assert.New(t)
	require.True(errors.As(outer, &target))
	require.Equal(ShuttingDown, target.Kind)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(New(StateNotOwned, ""))
	assert.True(t, ok)
	assert.Equal(t, StateNotOwned, kind)

	_, ok = KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}
