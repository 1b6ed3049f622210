// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login outcomes: "success", "invalid_credentials",
	// "not_active".
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// TokensIssued counts minted lifecycle tokens by kind.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "lifecycle_tokens_issued_total",
		Help:      "Lifecycle tokens minted, by kind.",
	}, []string{"kind"})

	// TokensConsumed counts redemption outcomes by kind: "consumed",
	// "expired", "already_used", "not_found".
	TokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "lifecycle_tokens_consumed_total",
		Help:      "Lifecycle token redemption attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// TokensReaped counts expired tokens removed by housekeeping.
	TokensReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "lifecycle_tokens_reaped_total",
		Help:      "Expired lifecycle tokens removed by housekeeping.",
	})

	// EnrichmentFailures counts profile enrichment steps that failed and
	// were skipped.
	EnrichmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "profile_enrichment_failures_total",
		Help:      "Profile enrichment steps skipped after an error, by step.",
	}, []string{"step"})

	// CredentialWrites counts payment credential bundle replacements.
	CredentialWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "payment_credential_writes_total",
		Help:      "Payment credential bundles stored or rotated.",
	})

	// RequestDuration observes HTTP handler latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "identity",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
