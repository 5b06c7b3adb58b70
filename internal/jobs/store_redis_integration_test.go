//go:build integration

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/pkg/platform/sentinel"
	"docverify/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	store, err := NewRedisStore(s.redis.Client, time.Hour)
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSetGet() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.store.Set(ctx, &Job{ID: "a", Status: StatusRunning, SubmittedAt: now, StartedAt: &now}))

	got, err := s.store.Get(ctx, "a")
	s.Require().NoError(err)
	s.Equal(StatusRunning, got.Status)
	s.True(now.Equal(got.SubmittedAt))

	_, err = s.store.Get(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestListNewestFirstAndPrunesExpired() {
	ctx := context.Background()
	base := time.Now().UTC()
	s.Require().NoError(s.store.Set(ctx, &Job{ID: "old", Status: StatusQueued, SubmittedAt: base}))
	s.Require().NoError(s.store.Set(ctx, &Job{ID: "new", Status: StatusQueued, SubmittedAt: base.Add(time.Second)}))
	s.Require().NoError(s.redis.Client.Del(ctx, jobKeyPrefix+"old").Err())

	jobs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal("new", jobs[0].ID)

	members, err := s.redis.Client.ZRange(ctx, jobIndexKey, 0, -1).Result()
	s.Require().NoError(err)
	s.Equal([]string{"new"}, members)
}
