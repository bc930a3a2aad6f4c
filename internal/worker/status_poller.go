package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/model"
)

// DefaultPollInterval is the cadence at which a pending transcript is re-checked.
const DefaultPollInterval = 5 * time.Second

// StatusQuerier returns the merged status of a transcription job.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

// StatusPoller re-queries a job until it settles
type StatusPoller struct {
	querier  StatusQuerier
	interval time.Duration
	log      *logrus.Entry
}

// NewStatusPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewStatusPoller(querier StatusQuerier, interval time.Duration, log *logrus.Entry) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{querier: querier, interval: interval, log: log}
}

// Interval returns the polling cadence.
func (p *StatusPoller) Interval() time.Duration {
	return p.interval
}

// Settled reports whether no further polls can change resp.
func Settled(resp *model.StatusResponse) bool {
	if resp.Status == model.StatusError {
		return true
	}
	return resp.Status == model.StatusCompleted && !resp.IsExtractingIngredients
}

// Run queries jobID immediately and then once per interval, passing every
// result to emit. It returns the settling result, the first query or emit
// error, or ctx's error.
func (p *StatusPoller) Run(ctx context.Context, jobID string, emit func(*model.StatusResponse) error) (*model.StatusResponse, error) {
	log := p.log.WithField("job_id", jobID)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		resp, err := p.querier.QueryStatus(ctx, jobID)
		if err != nil {
			log.WithError(err).WithField("polls", polls).Warn("status poll failed")
			return nil, err
		}

		if err := emit(resp); err != nil {
			return nil, err
		}

		if Settled(resp) {
			log.WithFields(logrus.Fields{"status": resp.Status, "polls": polls}).Info("job settled")
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
