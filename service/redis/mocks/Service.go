package mocks

import (
	time "time"

	mock "github.com/stretchr/testify/mock"

	ctx "github.com/x-xyz/nftvault/base/ctx"
)

// Service is a mock type for the Service type
type Service struct {
	mock.Mock
}

// Del provides a mock function with given fields: context, keys
func (_m *Service) Del(context ctx.Ctx, keys ...string) (int, error) {
	_va := make([]interface{}, len(keys))
	for _i := range keys {
		_va[_i] = keys[_i]
	}
	var _ca []interface{}
	_ca = append(_ca, context)
	_ca = append(_ca, _va...)
	ret := _m.Called(_ca...)

	var r0 int
	if rf, ok := ret.Get(0).(func(ctx.Ctx, ...string) int); ok {
		r0 = rf(context, keys...)
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, ...string) error); ok {
		r1 = rf(context, keys...)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Exists provides a mock function with given fields: context, key
func (_m *Service) Exists(context ctx.Ctx, key string) (bool, error) {
	ret := _m.Called(context, key)

	var r0 bool
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string) bool); ok {
		r0 = rf(context, key)
	} else {
		r0 = ret.Get(0).(bool)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, string) error); ok {
		r1 = rf(context, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Get provides a mock function with given fields: context, key
func (_m *Service) Get(context ctx.Ctx, key string) ([]byte, error) {
	ret := _m.Called(context, key)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string) []byte); ok {
		r0 = rf(context, key)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, string) error); ok {
		r1 = rf(context, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Incrby provides a mock function with given fields: context, key, val
func (_m *Service) Incrby(context ctx.Ctx, key string, val int) (int64, error) {
	ret := _m.Called(context, key, val)

	var r0 int64
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string, int) int64); ok {
		r0 = rf(context, key, val)
	} else {
		r0 = ret.Get(0).(int64)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, string, int) error); ok {
		r1 = rf(context, key, val)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Name provides a mock function with given fields:
func (_m *Service) Name() string {
	ret := _m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Ping provides a mock function with given fields: context
func (_m *Service) Ping(context ctx.Ctx) error {
	ret := _m.Called(context)

	var r0 error
	if rf, ok := ret.Get(0).(func(ctx.Ctx) error); ok {
		r0 = rf(context)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Publish provides a mock function with given fields: context, channel, msg
func (_m *Service) Publish(context ctx.Ctx, channel string, msg []byte) (int, error) {
	ret := _m.Called(context, channel, msg)

	var r0 int
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string, []byte) int); ok {
		r0 = rf(context, channel, msg)
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, string, []byte) error); ok {
		r1 = rf(context, channel, msg)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Set provides a mock function with given fields: context, key, val, expire
func (_m *Service) Set(context ctx.Ctx, key string, val []byte, expire time.Duration) error {
	ret := _m.Called(context, key, val, expire)

	var r0 error
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string, []byte, time.Duration) error); ok {
		r0 = rf(context, key, val, expire)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// TTL provides a mock function with given fields: context, key
func (_m *Service) TTL(context ctx.Ctx, key string) (int, error) {
	ret := _m.Called(context, key)

	var r0 int
	if rf, ok := ret.Get(0).(func(ctx.Ctx, string) int); ok {
		r0 = rf(context, key)
	} else {
		r0 = ret.Get(0).(int)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(ctx.Ctx, string) error); ok {
		r1 = rf(context, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
