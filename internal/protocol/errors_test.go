package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKind_String(t *testing.T) {
	require.Equal(t, "connect_failed", KindConnectFailed.String())
	require.Equal(t, "timeout", KindTimeout.String())
	require.Equal(t, "io_failure", KindIOFailure.String())
	require.Equal(t, "config_invalid", KindConfigInvalid.String())
	require.Equal(t, "unknown", ErrorKind(0).String())
}

func TestError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := fmt.Errorf("relay: %w", newError(KindIOFailure, "pipe", "write", cause))

	require.ErrorIs(t, err, ErrIOFailure)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Equal(t, KindIOFailure, KindOf(err))
	require.Equal(t, "pipe write: io_failure: broken pipe", errors.Unwrap(err).Error())
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindTimeout, KindOf(newError(KindTimeout, "COM1", "read", nil)))
	require.True(t, IsTimeout(newError(KindTimeout, "COM1", "read", nil)))
	require.Equal(t, KindConfigInvalid, KindOf(fmt.Errorf("%w: bad", ErrConfigInvalid)))
	require.Equal(t, ErrorKind(0), KindOf(errors.New("other")))
	require.False(t, IsTimeout(nil))
}
