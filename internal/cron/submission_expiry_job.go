package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	defaultSubmissionTTL = 48 * time.Hour
	expiryReason         = "payment not completed before expiry"
)

type SubmissionExpiryJobParams struct {
	Logger      *logger.Logger
	Submissions submissionExpirer
	TTL         time.Duration
	Clock       func() time.Time
}

type submissionExpirer interface {
	ExpirePendingBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// NewSubmissionExpiryJob expires pending submissions whose payment never
// arrived, so the ledger only shows live checkouts as pending.
func NewSubmissionExpiryJob(params SubmissionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Submissions == nil {
		return nil, fmt.Errorf("submissions repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultSubmissionTTL
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &submissionExpiryJob{
		logg:        params.Logger,
		submissions: params.Submissions,
		ttl:         ttl,
		now:         now,
	}, nil
}

type submissionExpiryJob struct {
	logg        *logger.Logger
	submissions submissionExpirer
	ttl         time.Duration
	now         func() time.Time
}

func (j *submissionExpiryJob) Name() string { return "submission-expiry" }

func (j *submissionExpiryJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.submissions.ExpirePendingBefore(ctx, cutoff, expiryReason)
	if err != nil {
		return 0, fmt.Errorf("expire submissions: %w", err)
	}
	if expired > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_expired": expired,
			"ttl_hours":    j.ttl.Hours(),
		}), "expired abandoned checkout submissions")
	}
	return expired, nil
}
