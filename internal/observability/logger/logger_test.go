package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewReplacesGlobalLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	for _, debug := range []bool{false, true} {
		log, err := New(nil, Config{ServiceName: "crm-invoices", Role: "invoices", Format: "console", Debug: debug})
		require.NoError(t, err)
		assert.Same(t, log, zap.L())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}
