package backend

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"time"

	"github.com/networknext/relay/internal/dispatch"
	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/relaymanager"
	"github.com/networknext/relay/internal/routerinfo"
	"github.com/networknext/relay/internal/session"
)

// Interval is the cadence of the control loop: snapshot, report, parse,
// apply, purge. spec.md §4.11 calls for "a slow cadence (seconds)".
const Interval = 10 * time.Second

// StatsWindow and StatsSafety parameterise the RouteStats computed from
// each relay's ping history for the report.
const (
	StatsWindow = 30.0
	StatsSafety = 1.0
)

// SessionGrace is the dispatcher's grace period, applied by the purge sweep
// on top of each session's expire_timestamp. The packet handlers do not
// check session expiry themselves.
const SessionGrace = dispatch.SessionGrace

// reporter is the interface Controller needs from its HTTP client: post a
// report body, get back the raw response bytes. *Client satisfies this; a
// fake stands in for it in tests so the control loop can be exercised
// without a real TLS connection.
type reporter interface {
	PostReport(ctx context.Context, body []byte) ([]byte, error)
}

// Controller runs the relay's control thread: it owns the HTTP client and
// drives RouterInfo, RelayManager and the session table purge from what the
// backend returns, per spec.md §4.11 and §5.
type Controller struct {
	RelayID         uint64
	InstanceID      string
	RouterPublicKey ed25519.PublicKey

	Client   reporter
	Recorder *packet.ThroughputRecorder
	Sessions *session.Table
	Relays   *relaymanager.Manager
	Router   *routerinfo.Info
	Log      *slog.Logger
}

// Run executes the control loop every Interval until ctx is cancelled. A
// failed cycle is logged and retried on the next tick; it never stops the
// data plane, per spec.md §7 kind 5.
func (c *Controller) Run(ctx context.Context) {
	c.Log = c.Log.With("instance_id", c.InstanceID)

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		c.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) runCycle(ctx context.Context) {
	now := c.Router.CurrentTime()

	report := Report{
		RelayID:      c.RelayID,
		LocalTime:    now,
		SessionCount: c.Sessions.Size(),
		EnvelopeUp:   c.Sessions.EnvelopeUpTotal(),
		EnvelopeDown: c.Sessions.EnvelopeDownTotal(),
		Throughput:   c.Recorder.Snapshot(),
		RelayStats:   c.Relays.GetStats(now, StatsWindow, StatsSafety),
	}

	body := EncodeReport(report)

	respBody, err := c.Client.PostReport(ctx, body)
	if err != nil {
		c.Log.Warn("backend report failed, keeping last known configuration", "error", err)
		return
	}

	resp, err := DecodeSignedResponse(respBody, c.RouterPublicKey)
	if err != nil {
		c.Log.Warn("backend response rejected", "error", err)
		return
	}

	// Per spec.md §5's ordering guarantee: the backend timestamp must
	// become visible before the relay-set update it accompanied.
	c.Router.SetTimestamp(resp.BackendTimestamp)
	c.Relays.Update(resp.Relays)

	removed := c.Sessions.Purge(c.Router.CurrentTimeSeconds(), SessionGrace)
	if removed > 0 {
		c.Log.Debug("purged expired sessions", "count", removed)
	}
}
