package notification

import (
	"context"
	"time"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

// Delivery outcomes reported to a Recorder
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Deliverer hands planned descriptors for one user to a push channel
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, userID string, descriptors []Descriptor) error
}

// Recorder observes delivery attempts, one call per descriptor
type Recorder interface {
	RecordDelivery(provider, outcome string, duration time.Duration)
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// MultiDeliverer fans descriptors out to every provider. One provider
// failing does not stop the others.
type MultiDeliverer struct {
	providers []Deliverer
}

// NewMultiDeliverer combines providers, skipping nil ones
func NewMultiDeliverer(providers ...Deliverer) *MultiDeliverer {
	m := &MultiDeliverer{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

// Name implements Deliverer
func (m *MultiDeliverer) Name() string { return "multi" }

// Len returns the number of providers
func (m *MultiDeliverer) Len() int { return len(m.providers) }

// Deliver implements Deliverer. The returned error joins every provider error.
func (m *MultiDeliverer) Deliver(ctx context.Context, userID string, descriptors []Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	var errs []error
	for _, p := range m.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.Deliver(ctx, userID, descriptors); err != nil {
			GetLogger().Warn("delivery provider failed",
				logger.String("provider", p.Name()),
				logger.String("user", userID),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record reports one attempt when a recorder is set
func record(r Recorder, provider string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.RecordDelivery(provider, outcome, time.Since(start))
}

func deliveryError(err error, provider, userID string) error {
	return deliveryErrorBuilder(err, provider, userID).Build()
}

// publishError is a delivery error for a send that was attempted at start
func publishError(err error, provider, userID string, start time.Time) error {
	return deliveryErrorBuilder(err, provider, userID).
		Timing("publish", time.Since(start)).
		Build()
}

func deliveryErrorBuilder(err error, provider, userID string) *errors.ErrorBuilder {
	return errors.New(err).
		Component("notification").
		Category(errors.CategoryDelivery).
		Context("provider", provider).
		Context("user", userID)
}
