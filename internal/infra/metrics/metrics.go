package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the credential counters.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeConflict    = "conflict"
	OutcomeDenied      = "denied"
	OutcomeExpired     = "expired"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

var (
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_token_verifications_total",
			Help: "Token verifications by outcome",
		},
		[]string{"outcome"},
	)

	PasswordHashDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credential_password_hash_duration_seconds",
			Help:    "Time spent hashing or verifying passwords",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credential_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	StoreUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "credential_store_up",
			Help: "1 when the last store ping succeeded",
		},
	)
)
