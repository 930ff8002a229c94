package metrics

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/x-xyz/nftvault/base/log"
)

const (
	defaultPort = 8125

	// round robin over the clients, size needs to be 2^n
	clientsSize = 16
	clientsMask = clientsSize - 1

	// buffer 10 metrics before sending to statsd
	bufferMetrics = 10
)

// Config points the process at a dogstatsd agent. Without a host the metrics
// go to the debug log.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	App  string `mapstructure:"app"`
}

var (
	cfg      Config
	initOnce sync.Once
	clients  []statsCli
	clientsN int32
)

// Init sets the agent and the env and app tags. Call it before New.
func Init(c Config) {
	cfg = c
}

func connect() {
	clients = make([]statsCli, clientsSize)
	if cfg.Host == "" {
		for i := range clients {
			clients[i] = logSink{}
		}
		return
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	log.Log().WithField("addr", addr).Info("connecting to dogstatsd")
	for i := range clients {
		cli, err := statsd.New(addr, statsd.WithMaxMessagesPerPayload(bufferMetrics))
		if err != nil {
			log.Log().WithFields(log.Fields{"addr": addr, "err": err}).Panic("dogstatsd unreachable")
		}
		clients[i] = cli
	}
}

func pick() statsCli {
	initOnce.Do(connect)
	return clients[atomic.AddInt32(&clientsN, 1)&clientsMask]
}

type statsCli interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
}

// sink adds the process tags to every metric
type sink struct {
	tags []string
}

func (s sink) with(tags []string) []string {
	out := make([]string, 0, len(s.tags)+len(tags)/2)
	out = append(out, s.tags...)
	return append(out, parseTag(tags)...)
}

func (s sink) fail(err error, key, fn string) {
	log.Log().WithFields(log.Fields{"err": err, "key": key, "func": fn}).Error("bump failed")
}

func (s sink) gauge(key string, val float64, tags []string) {
	if err := pick().Gauge(key, val, s.with(tags), 1); err != nil {
		s.fail(err, key, "BumpAvg")
	}
}

func (s sink) count(key string, val float64, tags []string) {
	if err := pick().Count(key, int64(val), s.with(tags), 1); err != nil {
		s.fail(err, key, "BumpSum")
	}
}

func (s sink) histogram(key string, val float64, tags []string) {
	if err := pick().Histogram(key, val, s.with(tags), 1); err != nil {
		s.fail(err, key, "BumpHistogram")
	}
}

func (s sink) timer(key string, tags []string) Ender {
	return &timer{sink: s, start: time.Now(), key: key, tags: s.with(tags)}
}

// parseTag turns k1, v1, k2, v2 into k1:v1, k2:v2
func parseTag(tags []string) []string {
	if len(tags)%2 != 0 {
		log.Log().WithField("tags", tags).Panic("tag length needs to be multiple of 2")
	}
	arr := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		arr = append(arr, tags[i]+":"+tags[i+1])
	}
	return arr
}

type timer struct {
	sink
	start time.Time
	key   string
	tags  []string
}

func (t *timer) End() {
	ms := float64(time.Since(t.start)) / float64(time.Millisecond)
	if err := pick().TimeInMilliseconds(t.key, ms, t.tags, 1); err != nil {
		t.fail(err, t.key, "BumpTime")
	}
}
