package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
	"github.com/fincore/xs2a-consent-gateway/internal/infrastructure/persistence/postgres"
	"github.com/fincore/xs2a-consent-gateway/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type IdempotencyRepositoryTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	repo   *postgres.IdempotencyRepository
}

func TestIdempotencyRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IdempotencyRepositoryTestSuite))
}

func (suite *IdempotencyRepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.repo = postgres.NewIdempotencyRepository(suite.testDB.DB, time.Hour, time.Hour)
}

func (suite *IdempotencyRepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *IdempotencyRepositoryTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *IdempotencyRepositoryTestSuite) Test_PutAndGet() {
	ctx := context.Background()
	t := suite.T()

	err := suite.repo.Put(ctx, "key-1", idempotency.Record{
		BodyHash:   "hash-1",
		StatusCode: 201,
		Response:   []byte(`{"consentId":"c-1"}`),
	})
	require.NoError(t, err)

	record, found, err := suite.repo.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hash-1", record.BodyHash)
	assert.Equal(t, 201, record.StatusCode)
	assert.JSONEq(t, `{"consentId":"c-1"}`, string(record.Response))
	assert.False(t, record.CreatedAt.IsZero())
}

func (suite *IdempotencyRepositoryTestSuite) Test_Get_Missing() {
	_, found, err := suite.repo.Get(context.Background(), "absent")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), found)
}

func (suite *IdempotencyRepositoryTestSuite) Test_Put_DoesNotOverwriteLiveRecord() {
	ctx := context.Background()
	t := suite.T()

	require.NoError(t, suite.repo.Put(ctx, "key-1", idempotency.Record{
		BodyHash:   "original",
		StatusCode: 201,
	}))
	require.NoError(t, suite.repo.Put(ctx, "key-1", idempotency.Record{
		BodyHash:   "other",
		StatusCode: 400,
	}))

	record, found, err := suite.repo.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "original", record.BodyHash, "a live record must stay immutable")
}

func (suite *IdempotencyRepositoryTestSuite) Test_ExpiredRecordIsInvisible() {
	ctx := context.Background()
	t := suite.T()

	// A repository with immediate expiry sees every stored record as stale.
	expired := postgres.NewIdempotencyRepository(suite.testDB.DB, time.Nanosecond, time.Nanosecond)
	require.NoError(t, expired.Put(ctx, "key-1", idempotency.Record{BodyHash: "h"}))

	_, found, err := expired.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, found)

	// The same row is visible through a repository with a live window.
	_, found, err = suite.repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, found)
}

func (suite *IdempotencyRepositoryTestSuite) Test_Evict() {
	ctx := context.Background()
	t := suite.T()

	require.NoError(t, suite.repo.Put(ctx, "key-1", idempotency.Record{}))
	require.NoError(t, suite.repo.Put(ctx, "key-2", idempotency.Record{}))

	// Nothing is stale inside the live window.
	evicted, err := suite.repo.Evict(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	expired := postgres.NewIdempotencyRepository(suite.testDB.DB, time.Nanosecond, time.Nanosecond)
	evicted, err = expired.Evict(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)

	_, found, err := suite.repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func (suite *IdempotencyRepositoryTestSuite) Test_Delete() {
	ctx := context.Background()
	t := suite.T()

	require.NoError(t, suite.repo.Put(ctx, "key-1", idempotency.Record{}))
	require.NoError(t, suite.repo.Delete(ctx, "key-1"))

	_, found, err := suite.repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, found)
}
