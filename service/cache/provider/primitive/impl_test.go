package primitive

import (
	"testing"
	"time"

	"github.com/coocood/freecache"
	"github.com/stretchr/testify/suite"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain/keys"
	"github.com/x-xyz/nftvault/service/cache/provider"
)

var (
	mockCtx = ctx.Background()
	listKey = keys.RedisKey(keys.PfxEventList, "0xvault", "7")
)

type primitiveSuite struct {
	suite.Suite
	im *impl
}

func (s *primitiveSuite) SetupTest() {
	s.im = NewPrimitive("events", 1).(*impl)
}

func TestPrimitive(t *testing.T) {
	suite.Run(t, new(primitiveSuite))
}

func (s *primitiveSuite) TestSetExpires() {
	page := []byte(`[{"seq":7}]`)
	s.NoError(s.im.Set(mockCtx, listKey, page, time.Second))

	got, err := s.im.cache.Get([]byte(listKey))
	s.NoError(err)
	s.Equal(page, got)

	time.Sleep(time.Second)
	_, err = s.im.cache.Get([]byte(listKey))
	s.Equal(freecache.ErrNotFound, err)
}

func (s *primitiveSuite) TestGet() {
	s.NoError(s.im.cache.Set([]byte(listKey), []byte("page"), 10))

	for key, want := range map[string]struct {
		val string
		err error
	}{
		listKey:   {val: "page"},
		"missing": {err: provider.ErrNotFound},
	} {
		v, _, err := s.im.Get(mockCtx, key)
		s.Equal(want.val, string(v), key)
		s.Equal(want.err, err, key)
	}
}

func (s *primitiveSuite) TestIncr() {
	s.NoError(s.im.cache.Set([]byte("hits"), []byte("5"), 10))
	v, ttl, err := s.im.Incr(mockCtx, "hits", 2)
	s.NoError(err)
	s.Equal(int64(7), v)
	s.True(ttl > 0 && ttl <= 10*time.Second, ttl.String())

	_, _, err = s.im.Incr(mockCtx, "absent", 1)
	s.Equal(provider.ErrNotFound, err)

	s.NoError(s.im.cache.Set([]byte("page"), []byte("not a number"), 10))
	_, _, err = s.im.Incr(mockCtx, "page", 1)
	s.Error(err)
}

func (s *primitiveSuite) TestGetReturnsTimeLeft() {
	s.NoError(s.im.Set(mockCtx, "ttl", []byte("v"), time.Minute))
	_, ttl, err := s.im.Get(mockCtx, "ttl")
	s.NoError(err)
	s.True(ttl > 50*time.Second && ttl <= time.Minute, ttl.String())

	s.NoError(s.im.Set(mockCtx, "forever", []byte("v"), 0))
	_, ttl, err = s.im.Get(mockCtx, "forever")
	s.NoError(err)
	s.Equal(time.Duration(0), ttl)
}

func (s *primitiveSuite) TestDel() {
	s.NoError(s.im.Set(mockCtx, listKey, []byte("page"), time.Minute))
	s.NoError(s.im.Del(mockCtx, listKey))
	_, _, err := s.im.Get(mockCtx, listKey)
	s.Equal(provider.ErrNotFound, err)
}
