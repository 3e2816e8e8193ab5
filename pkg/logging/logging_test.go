package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		logger, flush, err := New(Config{Level: "debug", Pretty: pretty})
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.WithField("pretty", pretty).Debug("logger ready")
		flush()
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().WithFields(map[string]any{"k": "v"}).Info("dropped")
	})
}
