package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
)

// FallbackExecutor tries each provider of a chain in order until one succeeds,
// recording every attempt. Attempts are strictly sequential: first success wins,
// so trying providers out of order would defeat priority semantics.
type FallbackExecutor struct {
	registry *provider.Registry
	logger   *slog.Logger
}

// NewFallbackExecutor creates a FallbackExecutor backed by the given registry.
func NewFallbackExecutor(registry *provider.Registry, logger *slog.Logger) *FallbackExecutor {
	return &FallbackExecutor{
		registry: registry,
		logger:   logger.With("component", "fallback_executor"),
	}
}

// ValidateProviderChain reports whether a chain is dispatchable: non-empty
// primary and no duplicate names (case-sensitive) across primary+fallbacks.
// Pure check, no side effects.
func ValidateProviderChain(chain domain.ProviderChain) bool {
	if chain.Primary == "" {
		return false
	}
	seen := make(map[string]struct{}, 1+len(chain.Fallbacks))
	for _, name := range chain.Names() {
		if _, dup := seen[name]; dup {
			return false
		}
		seen[name] = struct{}{}
	}
	return true
}

// ExecuteWithFallback runs the chain for one channel send. Retry/backoff within a
// single provider is not done here; the queue layer re-delivers failed jobs.
func (e *FallbackExecutor) ExecuteWithFallback(
	ctx context.Context,
	channel domain.Channel,
	chain domain.ProviderChain,
	details provider.SendRequestDetails,
	credentials map[string]provider.Credentials,
) domain.ExecutionResult {
	names := chain.Names()
	result := domain.ExecutionResult{
		Attempts: make([]domain.ProviderAttempt, 0, len(names)),
	}

	for i, name := range names {
		attempt := domain.ProviderAttempt{
			Provider:    name,
			Attempt:     i + 1,
			AttemptedAt: time.Now().UTC(),
		}

		prov, err := e.registry.Resolve(name, credentials[name])
		if err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			fallbackAttemptsCounter.WithLabelValues(name, "failure").Inc()
			e.logger.WarnContext(ctx, "Provider resolution failed, trying next in chain",
				"provider", name, "channel", channel, "error", err)
			continue
		}

		if !prov.Validate() {
			attempt.Error = fmt.Sprintf("provider '%s' failed validation", name)
			result.Attempts = append(result.Attempts, attempt)
			fallbackAttemptsCounter.WithLabelValues(name, "failure").Inc()
			e.logger.WarnContext(ctx, "Provider validation failed, trying next in chain",
				"provider", name, "channel", channel)
			continue
		}

		resp, sendErr := prov.Send(ctx, details)
		if sendErr != nil {
			attempt.Error = sendErr.Error()
			result.Attempts = append(result.Attempts, attempt)
			fallbackAttemptsCounter.WithLabelValues(name, "failure").Inc()
			e.logger.WarnContext(ctx, "Provider send failed, trying next in chain",
				"provider", name, "channel", channel, "error", sendErr)
			continue
		}

		attempt.Success = true
		result.Attempts = append(result.Attempts, attempt)
		fallbackAttemptsCounter.WithLabelValues(name, "success").Inc()
		result.Success = true
		result.Provider = name
		if resp != nil {
			result.MessageID = resp.ProviderMessageID
		}
		e.logger.InfoContext(ctx, "Provider send succeeded",
			"provider", name, "channel", channel, "attempt", i+1, "provider_msg_id", result.MessageID)
		return result
	}

	var parts []string
	for _, a := range result.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Error))
	}
	result.Error = &domain.DispatchError{
		Code:    domain.CodeAllProvidersFailed,
		Message: strings.Join(parts, "; "),
	}
	e.logger.ErrorContext(ctx, "All providers in chain failed",
		"channel", channel, "providers", names, "attempts", len(result.Attempts))
	return result
}
