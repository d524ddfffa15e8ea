package health

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name orchestrators probe in addition to the overall "" service.
const ServiceName = "purchase"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Checker struct {
	server *health.Server
	db     Pinger
	logger log.FieldLogger
}

func NewChecker(db Pinger, logger log.FieldLogger) *Checker {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{server: srv, db: db, logger: logger}
}

// Register exposes the grpc.health.v1 service on s.
func (c *Checker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.server)
}

// Probe pings the database once and publishes the result.
func (c *Checker) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.db.PingContext(ctx); err != nil {
		c.logger.WithError(err).Warn("database ping failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
	return status
}

// Run probes every interval until ctx is done, then marks the service as shutting down.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}

// GracefulStop drains srv until ctx expires, then closes the remaining
// connections. Health Watch streams stay open after Shutdown, so a bare
// GracefulStop can block forever.
func GracefulStop(ctx context.Context, srv *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		srv.Stop()
		<-stopped
	}
}
