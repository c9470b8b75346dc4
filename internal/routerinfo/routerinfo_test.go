package routerinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewStartsAtZero(t *testing.T) {
	r := New()
	require.InDelta(t, 0.0, r.CurrentTime(), 0.05)
}

func TestSetTimestampAdvancesFromNewBase(t *testing.T) {
	r := New()
	r.SetTimestamp(1000)
	require.InDelta(t, 1000.0, r.CurrentTime(), 0.05)

	time.Sleep(20 * time.Millisecond)
	require.Greater(t, r.CurrentTime(), 1000.0)
}

func TestCurrentTimeSecondsTruncates(t *testing.T) {
	r := New()
	r.SetTimestamp(500)
	require.Equal(t, uint64(500), r.CurrentTimeSeconds())
}
