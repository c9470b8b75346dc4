package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime"

	"github.com/networknext/relay/internal/dispatch"
	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/sock"
)

// worker owns one socket and runs the tight receive-handle-send loop
// spec.md §5 describes: no cooperative runtime, no per-packet allocation,
// ping scheduling folded into the same loop rather than a timer goroutine.
type worker struct {
	index      int
	socket     *sock.Socket
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger
}

func newWorker(index int, s *sock.Socket, d *dispatch.Dispatcher, log *slog.Logger) *worker {
	return &worker{index: index, socket: s, dispatcher: d, log: log.With("worker", index)}
}

// run blocks until ctx is cancelled. It locks itself to its OS thread and
// applies the socket's CPU affinity/RT scheduling before entering the loop,
// since both are thread-local kernel state that can only be set from the
// thread that will go on to own the socket, per spec.md §5's "N pinned OS
// threads". Each iteration: try a receive (bounded by the socket's blocking
// timeout), dispatch whatever arrived, then check for relays due another
// ping. ctx cancellation is only checked between iterations, since the
// socket recv itself is already time-bounded.
func (w *worker) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := w.socket.PinCurrentThread(); err != nil {
		w.log.Warn("failed to pin worker thread", "error", err)
	}

	var pkt packet.Packet

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, addr, ok, err := w.socket.Recv(pkt.Buffer[:])
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				w.log.Warn("socket receive error", "error", err)
			}
			continue
		}
		if ok {
			pkt.FromUDP(n, addr)
			w.dispatcher.Dispatch(w.socket, &pkt)
		}

		w.dispatcher.PingRelays(w.socket, w.dispatcher.Router.CurrentTime())
	}
}
