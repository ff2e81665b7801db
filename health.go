package main

import (
	"net"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the name the robot loop reports under.
const healthService = "racoon.Robot"

// healthAPI serves the standard gRPC health protocol. Status is NOT_SERVING
// until the scheduler has started.
type healthAPI struct {
	srv *grpc.Server
	hs  *health.Server
	lis net.Listener
	l   hclog.Logger
}

func newHealthAPI(addr string, l hclog.Logger) (*healthAPI, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "health listen %s", addr)
	}
	a := &healthAPI{
		srv: grpc.NewServer(),
		hs:  health.NewServer(),
		lis: lis,
		l:   l.Named("health"),
	}
	healthpb.RegisterHealthServer(a.srv, a.hs)
	a.SetServing(false)
	return a, nil
}

// Serve blocks until Stop.
func (a *healthAPI) Serve() error {
	a.l.Info("serving", "addr", a.lis.Addr().String())
	if err := a.srv.Serve(a.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "health serve")
	}
	return nil
}

func (a *healthAPI) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.hs.SetServingStatus(healthService, st)
	a.hs.SetServingStatus("", st)
}

func (a *healthAPI) Addr() net.Addr { return a.lis.Addr() }

func (a *healthAPI) Stop() {
	a.hs.Shutdown()
	a.srv.GracefulStop()
}
