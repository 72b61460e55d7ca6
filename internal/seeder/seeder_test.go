package seeder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	repo "github.com/Additional-Code/fulfillment/internal/repository/submission"
)

func TestSubmissionsIsIdempotent(t *testing.T) {
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    "file:" + filepath.Join(t.TempDir(), "seed.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	_, err = conns.Writer.NewCreateTable().Model((*entity.Submission)(nil)).Exec(ctx)
	require.NoError(t, err)

	r := repo.NewRepository(conns)
	s := New(r, zap.NewNop())

	created, err := s.Submissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Samples()), created)

	created, err = s.Submissions(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	failed, err := r.ListByStatus(ctx, entity.StatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "SEED-1003", failed[0].OrderNumber)
}
