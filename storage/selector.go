package storage

import (
	"context"
	"fmt"
	"reflect"

	"github.com/deemkeen/scronth/domain"
	"github.com/rs/zerolog/log"
)

// Selector decides which backends to try for a call and in what order.
type Selector struct {
	backends []PostBackend
}

// NewSelector keeps the given priority order. Nil backends are skipped so optional ones can be
// passed straight from configuration.
func NewSelector(backends ...PostBackend) *Selector {
	s := &Selector{}
	for _, b := range backends {
		if b == nil || isNilBackend(b) {
			continue
		}
		s.backends = append(s.backends, b)
	}
	return s
}

// Resolve returns the backends that are currently available, highest priority first.
func (s *Selector) Resolve(ctx context.Context) []PostBackend {
	available := make([]PostBackend, 0, len(s.backends))
	for _, b := range s.backends {
		if b.Available(ctx) {
			available = append(available, b)
		}
	}
	return available
}

// Do runs fn against each available backend in order until one succeeds. A domain error
// (not found, validation) is an answer from that backend and stops the walk. Any other error
// degrades the backend and moves on to the next one.
func (s *Selector) Do(ctx context.Context, op string, fn func(b PostBackend) error) error {
	var lastErr error
	for _, b := range s.Resolve(ctx) {
		err := fn(b)
		if err == nil || domain.IsDomainError(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
		if d, ok := b.(Degradable); ok {
			d.MarkUnavailable()
		}
		log.Warn().
			Str("backend", string(b.Kind())).
			Str("op", op).
			Err(err).
			Msg("Storage backend failed, continuing in degraded mode")
	}

	if lastErr == nil {
		return fmt.Errorf("%s: %w", op, domain.ErrBackendUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrBackendUnavailable, lastErr)
}

func isNilBackend(b PostBackend) bool {
	v := reflect.ValueOf(b)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
