package convclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrTimeout is returned when the poll budget runs out. The conversion has
// been abandoned on the server by then.
var ErrTimeout = errors.New("toonify: timed out waiting for the result")

// Poller drives a conversion until it is terminal.
type Poller struct {
	Client   *Client
	Interval time.Duration
	// MaxAttempts bounds successful polls that still report processing.
	MaxAttempts int
	// PerPollRetries is how often one failed poll is retried before giving up.
	PerPollRetries int
	RetryBase      time.Duration
	RetryCap       time.Duration
}

// NewImagePoller polls every 2s for up to two minutes.
func NewImagePoller(c *Client) *Poller {
	return &Poller{Client: c, Interval: 2 * time.Second, MaxAttempts: 60, PerPollRetries: 3, RetryBase: time.Second, RetryCap: 5 * time.Second}
}

// NewVideoPoller polls every 2s for up to four minutes.
func NewVideoPoller(c *Client) *Poller {
	p := NewImagePoller(c)
	p.MaxAttempts = 120
	return p
}

// WaitImage polls an image conversion to completion.
func (p *Poller) WaitImage(ctx context.Context, predictionID string) (*Status, error) {
	return p.wait(ctx, predictionID, p.Client.PollImage)
}

// WaitVideo polls a video conversion to completion.
func (p *Poller) WaitVideo(ctx context.Context, predictionID string) (*Status, error) {
	return p.wait(ctx, predictionID, p.Client.PollVideo)
}

type pollFunc func(ctx context.Context, id string) (*Status, error)

func (p *Poller) wait(ctx context.Context, id string, poll pollFunc) (*Status, error) {
	for attempt := 1; ; attempt++ {
		st, err := p.pollWithRetry(ctx, id, poll)
		if err != nil {
			return nil, err
		}
		if st.Terminal() {
			return st, nil
		}
		if attempt >= p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return nil, err
		}
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	st, err := p.Client.Abandon(actx, id)
	if err != nil {
		st = &Status{Status: StatusFailed, Error: "Timed out waiting for the result."}
	}
	return st, ErrTimeout
}

// pollWithRetry retries a failed poll with delays of min(base*2^(n-1), cap).
func (p *Poller) pollWithRetry(ctx context.Context, id string, poll pollFunc) (*Status, error) {
	base, limit := p.RetryBase, p.RetryCap
	if base <= 0 {
		base = time.Second
	}
	if limit < base {
		limit = base
	}
	var st *Status
	b := retry.WithMaxRetries(uint64(max(p.PerPollRetries, 0)),
		retry.WithCappedDuration(limit, retry.NewExponential(base)))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := poll(ctx, id)
		if err != nil {
			if IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		st = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", id, err)
	}
	return st, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
