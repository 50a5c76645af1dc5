package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, 0, run(context.Background(), []string{"version"}))
	assert.Equal(t, 1, run(context.Background(), []string{"run", "no-such-scenario"}))
	assert.Equal(t, 1, run(context.Background(), []string{"bogus-command"}))
}

func TestHandlePanicExitsNonZero(t *testing.T) {
	orig := osExit
	t.Cleanup(func() { osExit = orig })
	var code int
	osExit = func(c int) { code = c }

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, code)
}
