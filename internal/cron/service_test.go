package cron

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) TryLock(context.Context) (func(context.Context) error, bool, error) {
	if f.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, true, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}})
}

func TestRunOnceRunsEveryJobAndCombinesErrors(t *testing.T) {
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	last := &testJob{name: "last"}
	registry, err := NewRegistry(ok, bad, last)
	require.NoError(t, err)
	lock := &fakeLock{}

	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
	assert.Equal(t, 1, last.runs)
	assert.Equal(t, 1, lock.released)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: &fakeLock{held: true}})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&testJob{name: "a"}, &testJob{name: "a"})
	require.Error(t, err)

	registry, err := NewRegistry(&testJob{name: "a"})
	require.NoError(t, err)
	require.Error(t, registry.Register(nil))

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(&testJob{name: "voucher-expiry"}, &testJob{name: "outbox-retention"}, &testJob{name: "pending-payment-expiry"})
	require.NoError(t, err)

	all, err := registry.Select(" ")
	require.NoError(t, err)
	assert.Len(t, all.Jobs(), 3)

	picked, err := registry.Select("pending-payment-expiry, voucher-expiry")
	require.NoError(t, err)
	names := []string{}
	for _, job := range picked.Jobs() {
		names = append(names, job.Name())
	}
	assert.Equal(t, []string{"pending-payment-expiry", "voucher-expiry"}, names)

	_, err = registry.Select("nightly-report")
	require.ErrorContains(t, err, `unknown job "nightly-report"`)
}

type fakeLocker struct {
	held     bool
	released int
}

func (f *fakeLocker) AcquireLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if f.held {
		return nil, redis.ErrLockHeld
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.released++
		return nil
	}, nil
}

func TestRedisLockMapsHeldToNotOK(t *testing.T) {
	locker := &fakeLocker{}
	first, err := NewRedisLock(locker, "cron-worker:test", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(locker, "cron-worker:test", 0)
	require.NoError(t, err)

	unlock, ok, err := first.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, locker.released)

	require.NoError(t, unlock(context.Background()))
	assert.Equal(t, 1, locker.released)

	_, err = NewRedisLock(locker, "", 0)
	require.Error(t, err)
}
