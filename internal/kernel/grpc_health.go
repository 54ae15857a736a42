// Copyright 2026 The Orchestrator Kernel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// grpcHealthServer exposes the standard grpc_health_v1 service so
// orchestrators that expect a gRPC health check (rather than scraping
// GET /health) can watch the kernel's liveness. Grounded on the teacher's
// gRPC transport (pkg/server/server.go, pkg/transport) generalized down to
// the one service this kernel actually needs.
type grpcHealthServer struct {
	srv    *grpc.Server
	health *health.Server
	errCh  chan error
}

func newGRPCHealthServer(addr string, log *slog.Logger) (*grpcHealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc health listen %s: %w", addr, err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	g := &grpcHealthServer{srv: srv, health: hs, errCh: make(chan error, 1)}
	go func() {
		log.Info("grpc health listening", "addr", addr)
		g.errCh <- srv.Serve(lis)
	}()
	return g, nil
}

// setStatus updates the overall serving status, e.g. NOT_SERVING while the
// kernel is draining before shutdown.
func (g *grpcHealthServer) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if g == nil {
		return
	}
	g.health.SetServingStatus("", status)
}

func (g *grpcHealthServer) stop() {
	if g == nil {
		return
	}
	g.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	g.srv.GracefulStop()
}
