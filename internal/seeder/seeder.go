package seeder

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/entity"
	repo "github.com/Additional-Code/fulfillment/internal/repository/submission"
)

// Module provides the seeder together with the repository it writes through.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	repo   *repo.Repository
	logger *zap.Logger
}

// New constructs a Seeder.
func New(r *repo.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{repo: r, logger: logger}
}

// Samples returns one submission per lifecycle state.
func Samples() []entity.Submission {
	return []entity.Submission{
		{OrderNumber: "SEED-1000", SubmissionID: "seed-sub-1000", Status: entity.StatusSubmitted},
		{OrderNumber: "SEED-1001", SubmissionID: "seed-sub-1001", Status: entity.StatusAcknowledged,
			Response: `{"CreationAcknowledge":{"Order":{"OrderSubmission":{}}}}`},
		{OrderNumber: "SEED-1002", SubmissionID: "seed-sub-1002", Status: entity.StatusAlreadyInSystem,
			ErrorKind: "already_in_system", ErrorMessage: "order SEED-1002 already exists in the fulfillment system"},
		{OrderNumber: "SEED-1003", SubmissionID: "seed-sub-1003", Status: entity.StatusFailed,
			ErrorKind: "invalid_field_values", ErrorMessage: "Invalid value(s) found for field(s) : Order Number",
			Response: `{"error":{"code":"919"}}`},
	}
}

// Submissions inserts the sample submissions that are missing and returns how
// many were written.
func (s *Seeder) Submissions(ctx context.Context) (int, error) {
	created := 0
	for _, sample := range Samples() {
		submission := sample
		_, err := s.repo.Find(ctx, submission.OrderNumber, submission.SubmissionID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return created, err
		}
		if err := s.repo.Create(ctx, &submission); err != nil {
			return created, err
		}
		created++
	}

	if s.logger != nil {
		s.logger.Info("seeded submissions", zap.Int("count", created))
	}
	return created, nil
}
