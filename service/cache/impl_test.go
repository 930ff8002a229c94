package cache

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain/keys"
	"github.com/x-xyz/nftvault/service/cache/provider"
	"github.com/x-xyz/nftvault/service/cache/provider/primitive"
)

var (
	mockCtx = ctx.Background()
)

type value struct {
	Seq   uint64   `json:"seq"`
	Types []string `json:"types"`
}

type testsuite struct {
	suite.Suite
	im    *impl
	cache provider.Provider
}

func (ts *testsuite) SetupTest() {
	ts.cache = primitive.NewPrimitive("test", 64)
	ts.im = New(ServiceConfig{
		Ttl:   time.Second,
		Pfx:   "testing",
		Cache: ts.cache,
	}).(*impl)
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) TestGet() {
	var (
		k = "key"
		v = value{Seq: 3, Types: []string{"Minted", "Locked"}}
		c = &value{}
	)

	ts.Equal(ErrNotFound, ts.im.Get(mockCtx, k, c))

	sv, err := json.Marshal(v)
	ts.NoError(err)
	ts.cache.Set(mockCtx, keys.RedisKey(ts.im.pfx, k), sv, time.Second)
	ts.NoError(ts.im.Get(mockCtx, k, c))
	ts.Equal(v, *c)

	time.Sleep(time.Second)

	_, _, err = ts.cache.Get(mockCtx, keys.RedisKey(ts.im.pfx, k))
	ts.Equal(provider.ErrNotFound, err)
}

func (ts *testsuite) TestSet() {
	var (
		k = "key"
		v = value{Seq: 3, Types: []string{"Minted", "Locked"}}
		c = &value{}
	)

	ts.NoError(ts.im.Set(mockCtx, k, v))

	sv, _, err := ts.cache.Get(mockCtx, keys.RedisKey(ts.im.pfx, k))
	ts.NoError(err)

	ts.NoError(json.Unmarshal(sv, c))
	ts.Equal(v, *c)

	time.Sleep(time.Second)

	_, _, err = ts.cache.Get(mockCtx, keys.RedisKey(ts.im.pfx, k))
	ts.Equal(provider.ErrNotFound, err)
}

func (ts *testsuite) TestGetByFunc() {
	var (
		k = "key"
		v = value{Seq: 3, Types: []string{"Minted", "Locked"}}
		c = &value{}
	)

	ts.NoError(ts.im.GetByFunc(mockCtx, k, c, func() (interface{}, error) {
		return &v, nil
	}))

	ts.Equal(v, *c)

	sv, _, err := ts.cache.Get(mockCtx, keys.RedisKey(ts.im.pfx, k))
	ts.NoError(err)
	ts.NoError(json.Unmarshal(sv, c))
	ts.Equal(v, *c)

	time.Sleep(time.Second)

	_, _, err = ts.cache.Get(mockCtx, keys.RedisKey(ts.im.pfx, k))
	ts.Equal(provider.ErrNotFound, err)
}

func (ts *testsuite) TestGetByFuncGetterFails() {
	boom := errors.New("boom")
	c := &value{}
	ts.Equal(boom, ts.im.GetByFunc(mockCtx, "key", c, func() (interface{}, error) {
		return nil, boom
	}))
	ts.Equal(ErrNotFound, ts.im.Get(mockCtx, "key", c))
}

func (ts *testsuite) TestDel() {
	ts.NoError(ts.im.Set(mockCtx, "key", value{Seq: 1}))
	ts.NoError(ts.im.Del(mockCtx, "key"))
	ts.Equal(ErrNotFound, ts.im.Get(mockCtx, "key", &value{}))
}

func (ts *testsuite) TestGetByFuncSharesMisses() {
	var (
		calls   int32
		release = make(chan struct{})
		wg      sync.WaitGroup
		v       = value{Seq: 9}
	)
	getter := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &v, nil
	}

	results := make([]value, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts.NoError(ts.im.GetByFunc(mockCtx, "shared", &results[i], getter))
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	ts.Equal(int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		ts.Equal(v, r)
	}
}
