package sock

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openLoopback(t *testing.T) *Socket {
	t.Helper()
	opts := Options{
		Mode:            BlockingWithTimeout,
		Timeout:         50 * time.Millisecond,
		ReadBufferSize:  DefaultBufferSize,
		WriteBufferSize: DefaultBufferSize,
		AffinityCPU:     -1,
	}
	s, err := Open(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSendRecvRoundTrip(t *testing.T) {
	a := openLoopback(t)
	b := openLoopback(t)

	payload := []byte("hello relay")
	require.NoError(t, a.Send(b.LocalAddr(), payload))

	buf := make([]byte, 1500)
	n, addr, ok, err := b.Recv(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, addr)
	require.Equal(t, payload, buf[:n])
}

func TestRecvTimesOutWithoutData(t *testing.T) {
	a := openLoopback(t)

	buf := make([]byte, 1500)
	start := time.Now()
	n, addr, ok, err := a.Recv(buf)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, addr)
	require.Zero(t, n)
	require.Less(t, time.Since(start), time.Second)
}

func TestSendWritesWholeDatagram(t *testing.T) {
	a := openLoopback(t)
	b := openLoopback(t)

	err := a.Send(b.LocalAddr(), make([]byte, 1400))
	require.NoError(t, err)
}
