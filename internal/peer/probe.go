package peer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pion/stun/v3"
)

// ProbeResult is the outcome of one STUN binding request.
type ProbeResult struct {
	Server string
	Mapped string
	RTT    time.Duration
	Err    error
}

// Probe sends a binding request to the STUN server at rawURL and reports the
// reflexive address it sees for this host.
func Probe(ctx context.Context, rawURL string, timeout time.Duration) ProbeResult {
	result := ProbeResult{Server: rawURL}

	uri, err := stun.ParseURI(rawURL)
	if err != nil {
		result.Err = fmt.Errorf("parse url: %w", err)
		return result
	}
	if uri.Scheme != stun.SchemeTypeSTUN {
		result.Err = fmt.Errorf("not a stun url: %s", uri.Scheme)
		return result
	}
	addr := net.JoinHostPort(uri.Host, strconv.Itoa(uri.Port))

	client, err := stun.Dial("udp", addr)
	if err != nil {
		result.Err = fmt.Errorf("dial: %w", err)
		return result
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		mapped string
		err    error
	}
	replies := make(chan reply, 1)
	start := time.Now()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	go func() {
		err := client.Do(message, func(res stun.Event) {
			if res.Error != nil {
				replies <- reply{err: res.Error}
				return
			}
			var xorAddr stun.XORMappedAddress
			if err := xorAddr.GetFrom(res.Message); err != nil {
				replies <- reply{err: fmt.Errorf("read mapped address: %w", err)}
				return
			}
			replies <- reply{mapped: xorAddr.String()}
		})
		if err != nil {
			select {
			case replies <- reply{err: err}:
			default:
			}
		}
	}()

	select {
	case r := <-replies:
		result.Mapped, result.Err = r.mapped, r.err
		result.RTT = time.Since(start)
	case <-ctx.Done():
		result.Err = fmt.Errorf("no response: %w", ctx.Err())
	}
	return result
}
