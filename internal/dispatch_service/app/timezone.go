package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// recipientTimezoneMetadataKey is the metadata fallback field consulted when the
// directory record carries no zone.
const recipientTimezoneMetadataKey = "timezone"

// TimezoneResolver resolves delivery time zones under the client/user/mixed
// policy. The user path never errors; it degrades to UTC.
type TimezoneResolver struct {
	directory UserDirectory
	logger    *slog.Logger
}

// NewTimezoneResolver creates a TimezoneResolver backed by the user directory.
func NewTimezoneResolver(directory UserDirectory, logger *slog.Logger) *TimezoneResolver {
	return &TimezoneResolver{
		directory: directory,
		logger:    logger.With("component", "timezone_resolver"),
	}
}

// isValidZone reports whether name is a real IANA zone identifier.
func isValidZone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Resolve returns the delivery zone for one recipient.
func (t *TimezoneResolver) Resolve(ctx context.Context, recipient domain.Recipient, tenantID string, opts domain.TimezoneOptions) (string, error) {
	switch opts.Mode {
	case domain.TimezoneModeClient:
		if opts.Timezone == "" {
			return "", fmt.Errorf("%w: timezone mode 'client' requires a timezone", domain.ErrConfiguration)
		}
		if !isValidZone(opts.Timezone) {
			return "", fmt.Errorf("%w: '%s' is not a valid IANA timezone", domain.ErrConfiguration, opts.Timezone)
		}
		return opts.Timezone, nil
	case domain.TimezoneModeUser:
		return t.resolveUserZone(ctx, recipient, tenantID), nil
	case domain.TimezoneModeMixed:
		if isValidZone(opts.Timezone) {
			return opts.Timezone, nil
		}
		return t.resolveUserZone(ctx, recipient, tenantID), nil
	default:
		return "", fmt.Errorf("%w: unknown timezone mode '%s'", domain.ErrConfiguration, opts.Mode)
	}
}

// ResolveBatch resolves one zone per recipient, keyed by Recipient.Key(). In
// client mode every recipient gets the identical supplied zone with no directory
// calls at all; otherwise recipients are resolved concurrently.
func (t *TimezoneResolver) ResolveBatch(ctx context.Context, recipients []domain.Recipient, tenantID string, opts domain.TimezoneOptions) (map[string]string, error) {
	zones := make(map[string]string, len(recipients))

	if opts.Mode == domain.TimezoneModeClient {
		zone, err := t.Resolve(ctx, domain.Recipient{}, tenantID, opts)
		if err != nil {
			return nil, err
		}
		for _, r := range recipients {
			zones[r.Key()] = zone
		}
		return zones, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	for _, r := range recipients {
		wg.Add(1)
		go func(rec domain.Recipient) {
			defer wg.Done()
			zone, err := t.Resolve(ctx, rec, tenantID, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			zones[rec.Key()] = zone
		}(r)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return zones, nil
}

// resolveUserZone is the degradation path: stored zone, then the metadata
// fallback field, then UTC. It never errors.
func (t *TimezoneResolver) resolveUserZone(ctx context.Context, recipient domain.Recipient, tenantID string) string {
	if recipient.UserID != "" && t.directory != nil {
		user, err := t.directory.GetByID(ctx, recipient.UserID, tenantID)
		if err != nil {
			t.logger.WarnContext(ctx, "Directory lookup failed during timezone resolution, degrading",
				"user_id", recipient.UserID, "error", err)
		} else if user != nil {
			if isValidZone(user.Timezone) {
				return user.Timezone
			}
			if mz := user.Metadata[recipientTimezoneMetadataKey]; isValidZone(mz) {
				return mz
			}
		}
	}
	if mz := recipient.Metadata[recipientTimezoneMetadataKey]; isValidZone(mz) {
		return mz
	}
	return "UTC"
}

// CalculateScheduledTime interprets an RFC3339 base instant in the given zone.
// A bad instant or zone is a configuration error, never a silent default.
func CalculateScheduledTime(baseInstant, zone string) (time.Time, error) {
	base, err := time.Parse(time.RFC3339, baseInstant)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid scheduled-at instant '%s': %v", domain.ErrConfiguration, baseInstant, err)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timezone '%s': %v", domain.ErrConfiguration, zone, err)
	}
	return base.In(loc), nil
}
