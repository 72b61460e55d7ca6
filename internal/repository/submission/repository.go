package submission

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/fulfillment/repository/submission")

// ErrNotFound is returned when no submission matches.
var ErrNotFound = errors.New("submission not found")

// Repository encapsulates read/write access for submissions.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new submission using the write connection. A missing ID
// is generated.
func (r *Repository) Create(ctx context.Context, s *entity.Submission) error {
	if s == nil {
		return errors.New("nil submission")
	}
	ctx, span := repoTracer.Start(ctx, "SubmissionRepository.Create", trace.WithAttributes(
		attribute.String("order.number", s.OrderNumber),
		attribute.String("submission.id", s.SubmissionID),
	))
	defer span.End()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}

	_, err := r.writer.NewInsert().Model(s).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Latest returns the most recent submission for an order number.
func (r *Repository) Latest(ctx context.Context, orderNumber string) (*entity.Submission, error) {
	ctx, span := repoTracer.Start(ctx, "SubmissionRepository.Latest", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	s := new(entity.Submission)
	err := r.reader.NewSelect().Model(s).
		Where("order_number = ?", orderNumber).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err := r.selectErr(span, err); err != nil {
		return nil, err
	}
	return s, nil
}

// Find returns the submission identified by order number and submission ID.
func (r *Repository) Find(ctx context.Context, orderNumber, submissionID string) (*entity.Submission, error) {
	ctx, span := repoTracer.Start(ctx, "SubmissionRepository.Find", trace.WithAttributes(
		attribute.String("order.number", orderNumber),
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	s := new(entity.Submission)
	err := r.reader.NewSelect().Model(s).
		Where("order_number = ?", orderNumber).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err := r.selectErr(span, err); err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStatus returns up to limit submissions in status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]entity.Submission, error) {
	ctx, span := repoTracer.Start(ctx, "SubmissionRepository.ListByStatus", trace.WithAttributes(attribute.String("submission.status", status)))
	defer span.End()

	var out []entity.Submission
	q := r.reader.NewSelect().Model(&out).Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return out, nil
}

// Update writes the mutable outcome fields of s.
func (r *Repository) Update(ctx context.Context, s *entity.Submission) error {
	if s == nil {
		return errors.New("nil submission")
	}
	ctx, span := repoTracer.Start(ctx, "SubmissionRepository.Update", trace.WithAttributes(
		attribute.String("order.number", s.OrderNumber),
		attribute.String("submission.status", s.Status),
	))
	defer span.End()

	s.UpdatedAt = time.Now().UTC()
	res, err := r.writer.NewUpdate().Model(s).
		Column("status", "error_kind", "error_message", "response", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

func (r *Repository) selectErr(span trace.Span, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return err
}
