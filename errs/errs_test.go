package errs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransient_WrapsSentinel(t *testing.T) {
	cause := Input("bad query")
	err := Transient("search.invoke", cause)
	require.True(t, Is(err, ErrTransientProvider), "expected wrapped error to match ErrTransientProvider")
	require.False(t, Is(err, ErrPermanentProvider), "did not expect wrapped error to match ErrPermanentProvider")
}

func TestCitation_WrapsSentinel(t *testing.T) {
	err := Citation("dangling marker [3]")
	require.True(t, Is(err, ErrCitation), "expected wrapped error to match ErrCitation")
}

func TestPermanent_PreservesCauseInMessage(t *testing.T) {
	cause := Input("no search tool configured")
	err := Permanent("search.findSearchTool", cause)
	require.NotEmpty(t, err.Error(), "expected non-empty error message")
	require.True(t, Is(err, ErrPermanentProvider), "expected wrapped error to match ErrPermanentProvider")
}
