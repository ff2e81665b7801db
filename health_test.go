package main

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthFollowsServing(t *testing.T) {
	a, err := newHealthAPI("127.0.0.1:0", hclog.NewNullLogger())
	if err != nil {
		t.Fatal(err)
	}
	go a.Serve()
	defer a.Stop()

	conn, err := grpc.NewClient(a.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
		if err != nil {
			t.Fatal(err)
		}
		return resp.GetStatus()
	}

	if st := check(); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before start: %s", st)
	}
	a.SetServing(true)
	if st := check(); st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after start: %s", st)
	}
}

func TestHealthListenError(t *testing.T) {
	if _, err := newHealthAPI("127.0.0.1:99999", hclog.NewNullLogger()); err == nil {
		t.Fatal("bad address accepted")
	}
}
