package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"
	utls "github.com/refraction-networking/utls"
)

// requestTimeout is the fixed per-cycle HTTP deadline spec.md §4.11 requires.
const requestTimeout = 10 * time.Second

// Client posts stats reports to the backend over a TLS connection whose
// ClientHello is fingerprinted like a real browser (utls), after resolving
// the backend hostname itself rather than leaning on the OS resolver.
type Client struct {
	url        string
	httpClient *http.Client
	resolver   *resolver
}

// NewClient builds a Client that POSTs to https://hostname/relay/report.
func NewClient(hostname string) *Client {
	res := newResolver()

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialUTLS(ctx, network, addr, res)
		},
		MaxIdleConnsPerHost: 1,
	}

	return &Client{
		url:        fmt.Sprintf("https://%s/relay/report", hostname),
		httpClient: &http.Client{Transport: transport, Timeout: requestTimeout},
		resolver:   res,
	}
}

// PostReport sends an already-encoded report body and returns the raw
// response body on a 200, or an error for anything else (including
// transport failures and non-200 status).
func (c *Client) PostReport(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: post report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend: report rejected, status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// dialUTLS resolves addr's host via the relay's own DNS client, dials a raw
// TCP connection to the resolved IP, and performs a utls handshake over it
// with a Chrome-shaped ClientHello.
func dialUTLS(ctx context.Context, network, addr string, res *resolver) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("backend: split host port: %w", err)
	}

	ip, err := res.resolve(host)
	if err != nil {
		return nil, fmt.Errorf("backend: resolve %s: %w", host, err)
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, network, net.JoinHostPort(ip, port))
	if err != nil {
		return nil, fmt.Errorf("backend: dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}

	uconn := utls.UClient(raw, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := uconn.Handshake(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("backend: tls handshake: %w", err)
	}
	_ = raw.SetDeadline(time.Time{})
	return uconn, nil
}

// resolver wraps a miekg/dns client configured from the host's resolv.conf,
// used instead of Go's built-in resolver so the backend hostname lookup is
// explicit and inspectable.
type resolver struct {
	client  *dns.Client
	servers []string
}

func newResolver() *resolver {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	servers := []string{"8.8.8.8:53"}
	if err == nil && len(cfg.Servers) > 0 {
		servers = make([]string, len(cfg.Servers))
		for i, s := range cfg.Servers {
			servers[i] = net.JoinHostPort(s, cfg.Port)
		}
	}
	return &resolver{client: new(dns.Client), servers: servers}
}

// resolve returns host unchanged if it is already an IP literal, otherwise
// queries the first A record it gets back from any configured server.
func (r *resolver) resolve(host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.Exchange(msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range in.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A.String(), nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("no A record found for %s", host)
}
