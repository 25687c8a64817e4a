//go:build integration

package gate_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	conditionmodels "dealflow/internal/condition/models"
	"dealflow/internal/workflow/gate"
	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/testutil/containers"
)

type GateCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *gate.Cache
}

func TestGateCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(GateCacheSuite))
}

func (s *GateCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cache = gate.NewCache(s.redis.Client, 30*time.Second, logger)
}

func (s *GateCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func blockedGate(s *GateCacheSuite, txID id.TransactionID) *models.GateResult {
	c, err := conditionmodels.New(id.NewConditionID(), txID, "Financing approved",
		conditionmodels.CategoryFinancing, conditionmodels.LevelBlocking, time.Now())
	s.Require().NoError(err)
	return models.ComputeGate([]*conditionmodels.Condition{c}, false, false)
}

func (s *GateCacheSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	txID := id.NewTransactionID()

	s.Nil(s.cache.Get(ctx, txID), "cold cache misses")

	s.cache.Put(ctx, txID, blockedGate(s, txID))

	cached := s.cache.Get(ctx, txID)
	s.Require().NotNil(cached)
	s.False(cached.CanAdvance)
	s.Require().Len(cached.BlockingConditions, 1)
	s.Equal("Financing approved", cached.BlockingConditions[0].Title)
}

func (s *GateCacheSuite) TestInvalidateDropsEntry() {
	ctx := context.Background()
	txID := id.NewTransactionID()

	s.cache.Put(ctx, txID, blockedGate(s, txID))
	s.Require().NotNil(s.cache.Get(ctx, txID))

	s.cache.Invalidate(ctx, txID)
	s.Nil(s.cache.Get(ctx, txID))
}

func (s *GateCacheSuite) TestCorruptEntryIsDroppedNotSurfaced() {
	ctx := context.Background()
	txID := id.NewTransactionID()
	key := "gate:tx:" + txID.String()

	s.Require().NoError(s.redis.Client.Set(ctx, key, "{not json", time.Minute).Err())

	s.Nil(s.cache.Get(ctx, txID), "corrupt entries read as a miss")

	exists, err := s.redis.Client.Exists(ctx, key).Result()
	s.Require().NoError(err)
	s.Zero(exists, "corrupt entries are evicted on read")
}

func (s *GateCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	txID := id.NewTransactionID()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	short := gate.NewCache(s.redis.Client, 200*time.Millisecond, logger)

	short.Put(ctx, txID, blockedGate(s, txID))
	s.Require().NotNil(short.Get(ctx, txID))

	time.Sleep(400 * time.Millisecond)
	s.Nil(short.Get(ctx, txID))
}
