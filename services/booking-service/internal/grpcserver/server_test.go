package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/grpcx"
	"github.com/md-rashed-zaman/storefront/libs/runtime"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthFollowsReadyChecks(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	check := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 20*time.Millisecond, check)
	addr, err := srv.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, err := grpcx.Dial(ctx, addr.String(), grpcx.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}

	healthy.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected NOT_SERVING after check failure, got %v (%v)", resp.GetStatus(), err)
}
