package cache

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if got := Key("abc123", "ar"); got != "caption:abc123:ar" {
		t.Errorf("Expected caption:abc123:ar, got %s", got)
	}
}

func TestPingUnreachable(t *testing.T) {
	// Reserve a port then free it so nothing is listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	r := NewRedis(Config{Addr: addr, TTL: time.Minute})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err == nil {
		t.Error("Expected ping to fail without a server")
	}
}
