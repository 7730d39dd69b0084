package redis_repo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type stubEvalClient struct {
	keys   []string
	args   []interface{}
	result interface{}
	err    error
}

func (c *stubEvalClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	c.keys = keys
	c.args = args
	return redis.NewCmdResult(c.result, c.err)
}

func TestRateLimitRepoResult(t *testing.T) {
	testCases := []struct {
		name    string
		result  interface{}
		err     error
		allowed bool
		wantErr bool
	}{
		{name: "allowed", result: int64(1), allowed: true},
		{name: "rejected", result: int64(0), allowed: false},
		{name: "unexpected", result: int64(7), wantErr: true},
		{name: "redis error", err: errors.New("connection refused"), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &stubEvalClient{result: tc.result, err: tc.err}
			repo := NewRateLimitRepo(client, nil)

			allowed, err := repo.Allow(context.Background(), "member:1")
			if tc.wantErr {
				require.Error(t, err)
				require.False(t, allowed)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.allowed, allowed)
			require.Equal(t, []string{"ratelimit:member:1"}, client.keys)
		})
	}
}

func TestRateLimitRepoReadsLiveConfig(t *testing.T) {
	client := &stubEvalClient{result: int64(1)}
	live := RateLimitConfig{Capacity: 5, RatePS: 2, TTL: time.Minute}
	repo := NewRateLimitRepoWithSource(client, func() RateLimitConfig { return live })

	_, err := repo.Allow(context.Background(), "checkout:1")
	require.NoError(t, err)
	require.Equal(t, 5, client.args[0])
	require.Equal(t, 2, client.args[1])

	// 設定重新載入
	live = RateLimitConfig{Capacity: 20, RatePS: 4, TTL: 2 * time.Minute}
	_, err = repo.Allow(context.Background(), "checkout:1")
	require.NoError(t, err)
	require.Equal(t, 20, client.args[0])
	require.Equal(t, 4, client.args[1])
	require.Equal(t, int64(120), client.args[3])

	// 不合法的值沿用預設
	live = RateLimitConfig{}
	_, err = repo.Allow(context.Background(), "checkout:1")
	require.NoError(t, err)
	def := GetDefaultRateLimitConfig()
	require.Equal(t, def.Capacity, client.args[0])
	require.Equal(t, def.RatePS, client.args[1])
}

// 需要 STOREFRONT_TEST_REDIS 指向可用的 redis
type RateLimitRepoTestSuite struct {
	suite.Suite
	client *redis.Client
	ctx    context.Context
}

func (s *RateLimitRepoTestSuite) SetupSuite() {
	addr := os.Getenv("STOREFRONT_TEST_REDIS")
	if addr == "" {
		s.T().Skip("STOREFRONT_TEST_REDIS not set")
	}
	s.client = redis.NewClient(&redis.Options{Addr: addr})
	s.ctx = context.Background()
	require.NoError(s.T(), s.client.Ping(s.ctx).Err(), "Redis連線失敗")
}

func (s *RateLimitRepoTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RateLimitRepoTestSuite) SetupTest() {
	s.client.FlushDB(s.ctx)
}

func TestRateLimitRepoSuite(t *testing.T) {
	suite.Run(t, new(RateLimitRepoTestSuite))
}

func (s *RateLimitRepoTestSuite) TestCapacity() {
	repo := NewRateLimitRepo(s.client, &RateLimitConfig{Capacity: 3, RatePS: 1, TTL: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, err := repo.Allow(s.ctx, "capacity")
		require.NoError(s.T(), err)
		require.True(s.T(), allowed, "應該允許第 %d 次請求", i+1)
	}
	allowed, err := repo.Allow(s.ctx, "capacity")
	require.NoError(s.T(), err)
	require.False(s.T(), allowed, "超過容量限制應該被拒絕")
}

func (s *RateLimitRepoTestSuite) TestRefill() {
	repo := NewRateLimitRepo(s.client, &RateLimitConfig{Capacity: 1, RatePS: 1, TTL: time.Minute})

	allowed, err := repo.Allow(s.ctx, "refill")
	require.NoError(s.T(), err)
	require.True(s.T(), allowed)
	allowed, _ = repo.Allow(s.ctx, "refill")
	require.False(s.T(), allowed)

	time.Sleep(1100 * time.Millisecond)

	allowed, err = repo.Allow(s.ctx, "refill")
	require.NoError(s.T(), err)
	require.True(s.T(), allowed, "等待後應該有一個新的token")
}

func (s *RateLimitRepoTestSuite) TestKeysAreIndependent() {
	repo := NewRateLimitRepo(s.client, &RateLimitConfig{Capacity: 1, RatePS: 1, TTL: time.Minute})

	allowed, _ := repo.Allow(s.ctx, "key1")
	require.True(s.T(), allowed)
	allowed, _ = repo.Allow(s.ctx, "key1")
	require.False(s.T(), allowed)

	allowed, _ = repo.Allow(s.ctx, "key2")
	require.True(s.T(), allowed)
}
