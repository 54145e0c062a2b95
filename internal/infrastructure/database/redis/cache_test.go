package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientFromUniversal(db, logging.NewNopLogger())
	s.cache = NewRedisCache(client, nil, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type turnRecord struct {
	Question string `json:"question"`
	Turn     int    `json:"turn"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := turnRecord{Question: "battery status", Turn: 3}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectGet("test:conv:s-1").SetVal(string(bytes))

	var dest turnRecord
	err := s.cache.Get(context.Background(), "conv:s-1", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:k").RedisNil()

	var dest turnRecord
	err := s.cache.Get(context.Background(), "k", &dest)

	assert.Equal(s.T(), ErrCacheMiss, err)
	assert.True(s.T(), pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_NullCacheMarker() {
	s.mock.ExpectGet("test:k").SetVal(nullMarker)

	var dest turnRecord
	assert.Equal(s.T(), ErrCacheMiss, s.cache.Get(context.Background(), "k", &dest))
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:k").SetErr(fmt.Errorf("connection reset"))

	var dest turnRecord
	err := s.cache.Get(context.Background(), "k", &dest)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestSet_Success() {
	val := turnRecord{Question: "q", Turn: 1}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectSet("test:k", bytes, time.Minute).SetVal("OK")

	assert.NoError(s.T(), s.cache.Set(context.Background(), "k", val, time.Minute))
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	bytes, _ := json.Marshal("v")
	s.mock.ExpectSet("test:k", bytes, 30*time.Minute).SetVal("OK")

	assert.NoError(s.T(), s.cache.Set(context.Background(), "k", "v", 0))
}

func (s *CacheTestSuite) TestSet_Unserializable() {
	err := s.cache.Set(context.Background(), "k", make(chan int), time.Minute)
	assert.Equal(s.T(), ErrSerializationFailed, err)
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)

	assert.NoError(s.T(), s.cache.Delete(context.Background(), "k1", "k2"))
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists_True() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	exists, err := s.cache.Exists(context.Background(), "k1")
	assert.NoError(s.T(), err)
	assert.True(s.T(), exists)
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	val := turnRecord{Question: "q", Turn: 1}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectGet("test:k").SetVal(string(bytes))

	var dest turnRecord
	loaderCalled := false
	err := s.cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		loaderCalled = true
		return nil, nil
	})

	assert.NoError(s.T(), err)
	assert.False(s.T(), loaderCalled)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndStores() {
	val := turnRecord{Question: "q", Turn: 2}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectGet("test:k").RedisNil()
	s.mock.ExpectSet("test:k", bytes, time.Minute).SetVal("OK")

	var dest turnRecord
	err := s.cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return val, nil
	})

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGetOrSet_NilCachesNull() {
	s.mock.ExpectGet("test:k").RedisNil()
	s.mock.ExpectSet("test:k", nullMarker, 30*time.Second).SetVal("OK")

	var dest turnRecord
	err := s.cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.Equal(s.T(), ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:k").RedisNil()

	var dest turnRecord
	boom := pkgerrors.New(pkgerrors.ErrCodeExternalService, "upstream down")
	err := s.cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(s.T(), boom, err)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

// ─────────────────────────────────────────────────────────────────────────────
// Jitter
// ─────────────────────────────────────────────────────────────────────────────

func TestJitterTTL_StaysWithinBand(t *testing.T) {
	o := defaultCacheOptions()
	for i := 0; i < 200; i++ {
		got := o.jitterTTL(time.Minute)
		assert.GreaterOrEqual(t, got, 54*time.Second)
		assert.LessOrEqual(t, got, 66*time.Second)
	}
	assert.Equal(t, time.Duration(0), o.jitterTTL(0))
}

// ─────────────────────────────────────────────────────────────────────────────
// Singleflight
// ─────────────────────────────────────────────────────────────────────────────

func TestGetOrSet_CoalescesConcurrentLoads(t *testing.T) {
	cache := NewMemoryCache(nil)
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var dest string
			err := cache.GetOrSet(context.Background(), "stats", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return "fresh", nil
			})
			assert.NoError(t, err)
			results[i] = dest
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range results {
		assert.Equal(t, "fresh", r)
	}
}

//Personal.AI order the ending
