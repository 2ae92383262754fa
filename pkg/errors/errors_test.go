package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))

	base := errors.New("exit status 23")
	err := Wrap(base, "rsync failed")
	require.Error(t, err)
	assert.Equal(t, "rsync failed: exit status 23", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWrapf(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "endpoint %d", 1))

	err := Wrapf(ErrTransport, "endpoint %s after %d splits", "rsync://a.example.org", 3)
	assert.Equal(t, "endpoint rsync://a.example.org after 3 splits: transport failed", err.Error())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrLocked,
		ErrResolve,
		ErrMirrorFatal,
		ErrDownloadFatal,
		ErrLocalCopy,
		ErrPeerCache,
		ErrArgumentCeiling,
		ErrHookExecution,
	}

	cause := errors.New("cause")
	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := Wrapf(Wrap(fmt.Errorf("%w: %w", sentinel, cause), "inner"), "outer %d", 1)
			assert.ErrorIs(t, wrapped, sentinel)
			assert.ErrorIs(t, wrapped, cause)
		})
	}
}
