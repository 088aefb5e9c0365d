package notification

import (
	"context"
	"maps"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/httpclient"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

// WebhookConfig configures the publish endpoint
type WebhookConfig struct {
	URL           string
	BearerToken   string
	Headers       map[string]string
	RatePerSecond float64
	Burst         int
}

// WebhookPayload is the body posted for each descriptor
type WebhookPayload struct {
	Descriptor
	User string `json:"user,omitempty"`
}

// WebhookDeliverer posts descriptors as JSON, one request per descriptor
type WebhookDeliverer struct {
	url      string
	headers  map[string]string
	client   *httpclient.Client
	limiter  *rate.Limiter
	recorder Recorder
}

// NewWebhookDeliverer validates cfg and returns a deliverer using client
func NewWebhookDeliverer(cfg WebhookConfig, client *httpclient.Client, recorder Recorder) (*WebhookDeliverer, error) {
	target := strings.TrimSpace(cfg.URL)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, errors.Newf("webhook url must be http or https").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url", target).
			Build()
	}
	if client == nil {
		client = httpclient.New(nil)
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	maps.Copy(headers, cfg.Headers)
	if cfg.BearerToken != "" {
		headers["Authorization"] = "Bearer " + cfg.BearerToken
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := max(cfg.Burst, 1)
	GetLogger().Debug("webhook provider configured",
		logger.Float64("rate_per_second", cfg.RatePerSecond),
		logger.Int("burst", burst))

	return &WebhookDeliverer{
		url:      target,
		headers:  headers,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		recorder: recorder,
	}, nil
}

// Name implements Deliverer
func (w *WebhookDeliverer) Name() string { return "webhook" }

// Deliver implements Deliverer. Delivery stops at the first failure so a
// dead endpoint is not hammered with the rest of the batch.
func (w *WebhookDeliverer) Deliver(ctx context.Context, userID string, descriptors []Descriptor) error {
	for _, d := range descriptors {
		if err := w.limiter.Wait(ctx); err != nil {
			return deliveryError(err, w.Name(), userID)
		}
		start := time.Now()
		err := w.client.PostJSON(ctx, w.url, WebhookPayload{Descriptor: d, User: userID}, w.headers)
		record(w.recorder, w.Name(), start, err)
		if err != nil {
			return publishError(err, w.Name(), userID, start)
		}
	}
	return nil
}
