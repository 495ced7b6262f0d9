//go:build integration

package reportcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reportcache"
)

type RedisCacheSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	s.client, err = reportcache.NewRedisClient(ctx, url)
	s.Require().NoError(err)
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	cache := reportcache.NewRedis(s.client, "test:", 0)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	report := domain.Report{
		Kind:   "unit",
		Window: domain.ChangeWindow{Since: since, Until: since.Add(time.Hour)},
		Roots: []domain.ReportNode{{
			EntityID: id,
			Kind:     "unit",
			Action:   domain.ActionCreated,
			Fields:   map[string]any{"name": "Sunflower"},
			Children: []domain.ReportNode{},
		}},
	}

	_, ok, err := cache.Get(ctx, "k")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(cache.Set(ctx, "k", report))
	got, ok, err := cache.Get(ctx, "k")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(report.Window, got.Window)
	s.Require().Len(got.Roots, 1)
	s.Equal(id, got.Roots[0].EntityID)
	s.Equal("Sunflower", got.Roots[0].Fields["name"])

	exists, err := s.client.Exists(ctx, "test:k").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
}

func (s *RedisCacheSuite) TestTTLIsApplied() {
	ctx := context.Background()
	cache := reportcache.NewRedis(s.client, "ttl:", time.Minute)
	s.Require().NoError(cache.Set(ctx, "k", domain.Report{Kind: "unit"}))

	ttl, err := s.client.TTL(ctx, "ttl:k").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}
