//go:build integration

package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docverify/pkg/platform/sentinel"
	"docverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	require.NoError(s.T(), Migrate(s.pg.DB.DB))
	s.store = NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	require.NoError(s.T(), s.pg.TruncateTables(context.Background(), "run_artifacts"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleArtifact("run-1")))

	got, err := s.store.Get(ctx, "run-1")
	s.Require().NoError(err)
	s.Equal([]string{"FIO_MISMATCH"}, got.ErrorCodes())
	s.Require().NotNil(got.ExtractedDocType)
	s.Equal("sick_leave_certificate", *got.ExtractedDocType)
}

func (s *PostgresStoreSuite) TestDuplicateIsConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleArtifact("run-1")))
	s.ErrorIs(s.store.Save(ctx, sampleArtifact("run-1")), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestMissingIsNotFound() {
	_, err := s.store.Get(context.Background(), "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByErrorCode() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleArtifact("run-1")))
	clean := sampleArtifact("run-2")
	clean.Verdict = true
	clean.Errors = nil
	s.Require().NoError(s.store.Save(ctx, clean))

	got, err := s.store.ListByErrorCode(ctx, "FIO_MISMATCH", 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("run-1", got[0].RunID)
	s.Equal("sick_leave_certificate", got[0].DocType)
	assert.Equal(s.T(), []string{"FIO_MISMATCH"}, got[0].ErrorCodes)
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(Migrate(s.pg.DB.DB))
}
