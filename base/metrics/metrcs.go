/*Package metrics wraps datadog-go to record vault metrics
Following are naming convention of metric:
- Internal process time: *.time
- Error: *.err
- Rejected operation: *.reject
*/
package metrics

import (
	"github.com/x-xyz/nftvault/base/env"
)

// Ender provides interface for BumpTime
type Ender interface {
	End()
}

// Service provides interface for metrics
type Service interface {
	BumpAvg(key string, val float64, tags ...string)
	BumpSum(key string, val float64, tags ...string)
	BumpHistogram(key string, val float64, tags ...string)

	BumpTime(key string, tags ...string) Ender
}

// Option is functional parameter for metrics option
type Option func(*opt)

type opt struct {
	// withPodName means send metrics with pod name or not
	// default: true
	withPodName bool
}

// WithoutPodName drops the pod tag
func WithoutPodName() Option {
	return func(o *opt) {
		o.withPodName = false
	}
}

// New creates a metric client with package name as prefix
func New(pkgName string, options ...Option) Service {
	o := opt{
		withPodName: true,
	}
	for _, option := range options {
		option(&o)
	}

	tags := []string{
		// an empty host drops the host tags the agent would attach
		"host:",
		"env:" + cfg.Env,
		"app:" + cfg.App,
	}
	if o.withPodName {
		tags = append(tags, "pod:"+env.PodName())
	}

	return &Metrics{
		pkgName: pkgName,
		sink:    sink{tags: tags},
	}
}

// Metrics prefixes every key with the package name.
type Metrics struct {
	pkgName string
	sink    sink
}

func (mt *Metrics) key(key string) string {
	return mt.pkgName + "." + key
}

// BumpAvg bumps the average for the given key.
func (mt *Metrics) BumpAvg(key string, val float64, tags ...string) {
	mt.sink.gauge(mt.key(key), val, tags)
}

// BumpSum bumps the sum for the given key.
func (mt *Metrics) BumpSum(key string, val float64, tags ...string) {
	mt.sink.count(mt.key(key), val, tags)
}

// BumpHistogram bumps the histogram for the given key.
func (mt *Metrics) BumpHistogram(key string, val float64, tags ...string) {
	mt.sink.histogram(mt.key(key), val, tags)
}

// BumpTime starts a timer; End records it.
//
//	defer s.BumpTime("mint.time").End()
func (mt *Metrics) BumpTime(key string, tags ...string) Ender {
	return mt.sink.timer(mt.key(key), tags)
}

type nop struct{}

// Nop returns a Service that drops everything
func Nop() Service {
	return nop{}
}

func (nop) BumpAvg(string, float64, ...string)       {}
func (nop) BumpSum(string, float64, ...string)       {}
func (nop) BumpHistogram(string, float64, ...string) {}
func (nop) BumpTime(string, ...string) Ender         { return nop{} }
func (nop) End()                                     {}
