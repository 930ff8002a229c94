package middleware

import (
	"bufio"
	"bytes"
	"errors"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/service/cache"
	"github.com/x-xyz/nftvault/service/cache/provider"
)

const (
	cacheMiddlewarePfx = "httpCache"

	// HeaderCache tells a client whether the body came from the cache
	HeaderCache = "X-Vault-Cache"
)

// Response is what the middleware keeps per request key.
type Response struct {
	Status int
	Value  []byte
	Header http.Header
}

// recorder tees the body into buf while it is written to the client
type recorder struct {
	status int
	buf    bytes.Buffer
	http.ResponseWriter
}

func (w *recorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recorder) Flush() {
	w.ResponseWriter.(http.Flusher).Flush()
}

func (w *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.(http.Hijacker).Hijack()
}

// requestKey hashes the path with its query in a stable order, so ?a=1&b=2
// and ?b=2&a=1 share an entry.
func requestKey(u *url.URL) string {
	params := u.Query()
	for _, vs := range params {
		sort.Strings(vs)
	}

	hash := fnv.New64a()
	io.WriteString(hash, u.Path)
	io.WriteString(hash, "?")
	// Encode sorts by key
	io.WriteString(hash, params.Encode())
	return strconv.FormatUint(hash.Sum64(), 36)
}

// CacheHttp caches 2xx GET responses for ttl in p.
func CacheHttp(p provider.Provider, ttl time.Duration, met metrics.Service) echo.MiddlewareFunc {
	if met == nil {
		met = metrics.Nop()
	}
	cacheService := cache.New(cache.ServiceConfig{
		Ttl:   ttl,
		Pfx:   cacheMiddlewarePfx,
		Cache: p,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			context, ok := c.Get("ctx").(ctx.Ctx)
			if !ok || c.Request().Method != http.MethodGet {
				return next(c)
			}

			key := requestKey(c.Request().URL)
			res := Response{}
			err := cacheService.Get(context, key, &res)
			if err == nil {
				met.BumpSum("hit", 1)
				h := c.Response().Header()
				for k, v := range res.Header {
					h.Set(k, strings.Join(v, ","))
				}
				h.Set(HeaderCache, "hit")
				c.Response().WriteHeader(res.Status)
				_, err := c.Response().Write(res.Value)
				return err
			} else if !errors.Is(err, cache.ErrNotFound) {
				context.WithField("err", err).Error("cacheService.Get failed")
			}
			met.BumpSum("miss", 1)

			c.Response().Header().Set(HeaderCache, "miss")
			w := &recorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = w
			if err := next(c); err != nil {
				c.Error(err)
			}

			if w.status < 200 || w.status >= 300 {
				return nil
			}
			header := w.Header().Clone()
			header.Del(HeaderCache)
			if err := cacheService.Set(context, key, Response{
				Status: w.status,
				Value:  w.buf.Bytes(),
				Header: header,
			}); err != nil {
				context.WithField("err", err).Error("cacheService.Set failed")
			}
			return nil
		}
	}
}
