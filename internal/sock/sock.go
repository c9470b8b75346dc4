// Package sock wraps a UDP socket the way a relay worker needs it: a fixed
// external bind address shared across workers via SO_REUSEPORT, tuned send
// and receive buffers, and either non-blocking or short-timeout-blocking
// reads.
package sock

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultBufferSize is the default send/recv socket buffer size.
const DefaultBufferSize = 64 * 1024

// DefaultBlockingTimeout is the default read deadline for blocking-with-
// timeout sockets.
const DefaultBlockingTimeout = 10 * time.Millisecond

// Mode selects how Recv behaves when no datagram is pending.
type Mode int

const (
	// NonBlocking makes Recv return immediately with ok=false if nothing is
	// queued.
	NonBlocking Mode = iota
	// BlockingWithTimeout makes Recv wait up to Options.Timeout.
	BlockingWithTimeout
)

// Options configures a Socket.
type Options struct {
	Mode            Mode
	Timeout         time.Duration
	ReadBufferSize  int
	WriteBufferSize int
	ReusePort       bool
	RealtimeSchedule bool
	AffinityCPU     int // -1 disables pinning
}

// DefaultOptions returns the relay's standard per-worker socket options.
func DefaultOptions() Options {
	return Options{
		Mode:            BlockingWithTimeout,
		Timeout:         DefaultBlockingTimeout,
		ReadBufferSize:  DefaultBufferSize,
		WriteBufferSize: DefaultBufferSize,
		ReusePort:       true,
		AffinityCPU:     -1,
	}
}

// Socket is one worker's exclusive UDP endpoint.
type Socket struct {
	conn    *net.UDPConn
	opts    Options
}

// Open binds a UDP socket to addr using opts. When opts.ReusePort is set,
// the socket is created with SO_REUSEPORT so multiple workers can share one
// external address; the kernel fans inbound datagrams out across them.
func Open(addr *net.UDPAddr, opts Options) (*Socket, error) {
	var conn *net.UDPConn
	var err error

	if opts.ReusePort {
		conn, err = listenReusePort(addr)
	} else {
		conn, err = net.ListenUDP("udp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("sock: listen %s: %w", addr, err)
	}

	if opts.ReadBufferSize > 0 {
		_ = conn.SetReadBuffer(opts.ReadBufferSize)
	}
	if opts.WriteBufferSize > 0 {
		_ = conn.SetWriteBuffer(opts.WriteBufferSize)
	}

	return &Socket{conn: conn, opts: opts}, nil
}

// PinCurrentThread applies this socket's configured CPU affinity and
// real-time scheduling to the calling OS thread. The caller must have
// already called runtime.LockOSThread and must be the goroutine that will
// go on to call Recv/Send for this socket: affinity and scheduling are
// thread-local kernel state, not something Open (which runs on whatever
// goroutine constructs the Relay) can set on a worker's behalf.
func (s *Socket) PinCurrentThread() error {
	if s.opts.AffinityCPU >= 0 {
		if err := pinToCPU(s.opts.AffinityCPU); err != nil {
			return fmt.Errorf("sock: cpu affinity: %w", err)
		}
	}
	if s.opts.RealtimeSchedule {
		if err := requestRealtimeSchedule(); err != nil {
			return fmt.Errorf("sock: rt schedule: %w", err)
		}
	}
	return nil
}

// listenReusePort binds addr with SO_REUSEPORT set before bind, so that a
// second worker can bind the identical address.
func listenReusePort(addr *net.UDPAddr) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr.String())
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		return nil, fmt.Errorf("sock: unexpected packet conn type %T", pc)
	}
	return conn, nil
}

// Recv reads one datagram into buf, returning the number of bytes read, the
// sender address, and whether a datagram was actually available.
func (s *Socket) Recv(buf []byte) (int, *net.UDPAddr, bool, error) {
	switch s.opts.Mode {
	case NonBlocking:
		_ = s.conn.SetReadDeadline(time.Now().Add(time.Microsecond))
	case BlockingWithTimeout:
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.Timeout))
	}

	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	return n, addr, true, nil
}

// Send fires a single datagram at addr. Partial sends are treated as
// failures; UDP send is otherwise fire-and-forget.
func (s *Socket) Send(addr *net.UDPAddr, buf []byte) error {
	n, err := s.conn.WriteToUDP(buf, addr)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("sock: partial send (%d of %d bytes)", n, len(buf))
	}
	return nil
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// LocalAddr returns the socket's bound address.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// pinToCPU sets the calling OS thread's CPU affinity mask to a single core.
// Callers must invoke this from the goroutine intended to own the socket
// after calling runtime.LockOSThread.
func pinToCPU(cpu int) error {
	if cpu >= runtime.NumCPU() {
		return fmt.Errorf("sock: cpu %d out of range (NumCPU=%d)", cpu, runtime.NumCPU())
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// requestRealtimeSchedule asks the kernel for SCHED_FIFO on the calling
// thread at a low real-time priority. Failure (commonly insufficient
// capability) is returned to the caller to log and ignore; the relay
// still functions under the default scheduler.
func requestRealtimeSchedule() error {
	return unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: 1})
}
