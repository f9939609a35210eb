package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "expected %v to be between %v and %v", got, before, after)
}

func TestSteppingAdvances(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := NewStepping(start, time.Second)
	require.Equal(t, start, clk.Now())
	require.Equal(t, start.Add(time.Second), clk.Now())
	require.Equal(t, start.Add(2*time.Second), clk.Now())
}
