package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
)

func TestFatalSweepErr(t *testing.T) {
	assert.False(t, fatalSweepErr(nil))

	// A resolved verdict is a clean no-op for the single-record trigger,
	// never a non-zero exit.
	frozen := fmt.Errorf("billing record abc verdict is resolved: %w", apperrors.ErrFrozen)
	assert.False(t, fatalSweepErr(frozen))

	assert.True(t, fatalSweepErr(errors.New("dial tcp: connection refused")))
	assert.True(t, fatalSweepErr(fmt.Errorf("contract %q: %w", "C9", apperrors.ErrNotFound)))
	assert.True(t, fatalSweepErr(context.Canceled))
}
