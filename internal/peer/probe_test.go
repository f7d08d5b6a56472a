package peer

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pion/stun/v3"
)

// startSTUNServer answers one binding request with the sender's address.
func startSTUNServer(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if err := req.Decode(); err != nil {
			return
		}
		udp := from.(*net.UDPAddr)
		res, err := stun.Build(
			stun.NewTransactionIDSetter(req.TransactionID),
			stun.BindingSuccess,
			&stun.XORMappedAddress{IP: udp.IP, Port: udp.Port},
			stun.Fingerprint,
		)
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(res.Raw, from)
	}()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	return "stun:127.0.0.1:" + strconv.Itoa(port)
}

func TestProbe_MappedAddress(t *testing.T) {
	server := startSTUNServer(t)

	result := Probe(context.Background(), server, 2*time.Second)
	if result.Err != nil {
		t.Fatalf("Probe: %v", result.Err)
	}
	host, _, err := net.SplitHostPort(result.Mapped)
	if err != nil {
		t.Fatalf("mapped=%q: %v", result.Mapped, err)
	}
	if host != "127.0.0.1" {
		t.Fatalf("mapped host=%s, want 127.0.0.1", host)
	}
	if result.Server != server {
		t.Fatalf("server=%s, want %s", result.Server, server)
	}
}

func TestProbe_BadURL(t *testing.T) {
	if r := Probe(context.Background(), "http://example.org", time.Second); r.Err == nil {
		t.Fatal("expected error for non-stun url")
	}
	if r := Probe(context.Background(), "turn:127.0.0.1:3478", time.Second); r.Err == nil {
		t.Fatal("expected error for turn url")
	}
}

func TestProbe_Timeout(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	server := "stun:127.0.0.1:" + strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port)

	result := Probe(context.Background(), server, 200*time.Millisecond)
	if result.Err == nil {
		t.Fatal("expected timeout from silent server")
	}
}
