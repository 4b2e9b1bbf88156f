package grpc

import (
	"context"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/metrics"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the credential service reports under in the
// standard health protocol.
const ServiceName = "credential.v1.CredentialService"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter publishes SERVING while the credential store answers pings.
type HealthReporter struct {
	srv      *health.Server
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewHealthReporter(store Pinger, interval time.Duration, log *zap.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		srv:      srv,
		store:    store,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
}

func (h *HealthReporter) Server() healthpb.HealthServer {
	return h.srv
}

// Probe pings the store once and publishes the result.
func (h *HealthReporter) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
		metrics.StoreUp.Set(0)
	} else {
		metrics.StoreUp.Set(1)
	}

	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run probes on every tick until ctx is done, then marks everything
// NOT_SERVING so watchers drain before the listener closes.
func (h *HealthReporter) Run(ctx context.Context) error {
	h.Probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return nil
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
