package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/srg/blepoll/session"
	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter(t *testing.T) {
	// GOAL: Verify the progress line follows the run phases and is cleared once polling starts
	//
	// TEST SCENARIO: Start → Scanning for two ticks → Polling → line cleared, no further output

	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Polling \"choicemmed\"")
	cb := p.Callback()

	p.Start()
	cb(session.Scanning)
	time.Sleep(2*progressUpdateInterval + 50*time.Millisecond)
	cb(session.Polling)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\rPolling \"choicemmed\" (Starting...)"), "first frame MUST show the initial phase")
	assert.Contains(t, out, "(Scanning...)")
	assert.True(t, strings.HasSuffix(out, clearLineSequence), "stopping MUST clear the line")

	size := buf.Len()
	time.Sleep(2 * progressUpdateInterval)
	cb(session.Done)
	p.Stop()
	assert.Equal(t, size, buf.Len(), "nothing MUST be printed after polling starts")
}

func TestProgressPrinter_StopBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "x")

	p.Stop()
	p.Start()
	p.Stop()
	assert.Empty(t, buf.String(), "a stopped printer MUST NOT start")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
