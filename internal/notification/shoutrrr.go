package notification

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/thyholm1234/DOF.not/internal/errors"
)

// ShoutrrrDeliverer sends title and body through shoutrrr service URLs
type ShoutrrrDeliverer struct {
	sender   *router.ServiceRouter
	recorder Recorder
}

// NewShoutrrrDeliverer builds one sender for all urls
func NewShoutrrrDeliverer(urls []string, timeout time.Duration, recorder Recorder) (*ShoutrrrDeliverer, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one shoutrrr url is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the raw error can echo tokens embedded in the url
		return nil, errors.Newf("invalid shoutrrr url: %s", redactError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrDeliverer{sender: sender, recorder: recorder}, nil
}

// Name implements Deliverer
func (s *ShoutrrrDeliverer) Name() string { return "shoutrrr" }

// Deliver implements Deliverer. The body carries the target url on its own
// line since most services have no link field.
func (s *ShoutrrrDeliverer) Deliver(ctx context.Context, userID string, descriptors []Descriptor) error {
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return deliveryError(err, s.Name(), userID)
		}
		params := stypes.Params{}
		params.SetTitle(d.Title)

		start := time.Now()
		err := firstError(s.sender.Send(d.Body+"\n"+d.TargetURL, &params))
		record(s.recorder, s.Name(), start, err)
		if err != nil {
			return publishError(errors.NewStd(redactError(err)), s.Name(), userID, start)
		}
	}
	return nil
}

func firstError(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// redactError keeps the message up to the first url-looking token
func redactError(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "://"); i >= 0 {
		return msg[:i] + "://[redacted]"
	}
	return msg
}
