package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/cureid-api/interfaces"
)

type fakeSource struct {
	mu      sync.Mutex
	files   map[string][]byte
	listErr error
}

func (f *fakeSource) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSource) Read(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return body, nil
}

func (f *fakeSource) add(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = []byte("[]")
}

type fakeIngestor struct {
	mu        sync.Mutex
	calls     map[string]int
	failUntil map[string]int
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{calls: map[string]int{}, failUntil: map[string]int{}}
}

func (f *fakeIngestor) Process(_ context.Context, name string, _ []byte) (*interfaces.IngestResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.calls[name] <= f.failUntil[name] {
		return nil, errors.New("malformed case")
	}
	return &interfaces.IngestResult{FileName: name, Cases: 1}, nil
}

func (f *fakeIngestor) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func newSource(names ...string) *fakeSource {
	src := &fakeSource{files: map[string][]byte{}}
	for _, name := range names {
		src.add(name)
	}
	return src
}

func TestRunOnceProcessesEachFileOnce(t *testing.T) {
	src := newSource("a-1-x.json", "a-2-y.json")
	ing := newFakeIngestor()
	s := NewScheduler(src, ing, 15, 2)
	ctx := context.Background()

	require.NoError(t, s.RunOnce(ctx))
	require.NoError(t, s.RunOnce(ctx))

	assert.Equal(t, 1, ing.callCount("a-1-x.json"))
	assert.Equal(t, 1, ing.callCount("a-2-y.json"))

	src.add("a-3-z.json")
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 1, ing.callCount("a-3-z.json"))
	assert.Equal(t, 1, ing.callCount("a-1-x.json"))

	status := s.Status()
	assert.Equal(t, 3, status.FilesProcessed)
	assert.Equal(t, 0, status.FilesFailed)
	assert.False(t, status.LastSuccess.IsZero())
	assert.False(t, status.IsRunning)
}

func TestRunOnceRetriesThenGivesUp(t *testing.T) {
	src := newSource("a-1-flaky.json", "a-2-broken.json")
	ing := newFakeIngestor()
	ing.failUntil["a-1-flaky.json"] = 1
	ing.failUntil["a-2-broken.json"] = 100
	s := NewScheduler(src, ing, 15, 1)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, s.RunOnce(ctx))
	}

	assert.Equal(t, 2, ing.callCount("a-1-flaky.json"))
	assert.Equal(t, DefaultMaxAttempts, ing.callCount("a-2-broken.json"))

	status := s.Status()
	assert.Equal(t, 1, status.FilesProcessed)
	assert.Equal(t, 1+DefaultMaxAttempts, status.FilesFailed)
}

func TestRunOnceLastSuccessOnlyAfterCleanRun(t *testing.T) {
	src := newSource("a-1-x.json")
	ing := newFakeIngestor()
	ing.failUntil["a-1-x.json"] = 1
	s := NewScheduler(src, ing, 15, 1)

	require.NoError(t, s.RunOnce(context.Background()))
	status := s.Status()
	assert.False(t, status.LastRun.IsZero())
	assert.True(t, status.LastSuccess.IsZero())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.False(t, s.Status().LastSuccess.IsZero())
}

func TestRunOnceRespectsWorkerLimit(t *testing.T) {
	src := newSource("a-1-a.json", "a-2-b.json", "a-3-c.json", "a-4-d.json", "a-5-e.json", "a-6-f.json")
	ing := newFakeIngestor()
	ing.delay = 20 * time.Millisecond
	s := NewScheduler(src, ing, 15, 2)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.LessOrEqual(t, ing.maxInFlight.Load(), int32(2))
	assert.Equal(t, 6, s.Status().FilesProcessed)
}

func TestRunOnceListFailure(t *testing.T) {
	src := newSource()
	src.listErr = errors.New("bucket not found")
	s := NewScheduler(src, newFakeIngestor(), 15, 1)

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, src.listErr)
	assert.False(t, s.Status().IsRunning)
}

func TestRunOnceSkipsWhenAlreadyRunning(t *testing.T) {
	src := newSource("a-1-x.json")
	ing := newFakeIngestor()
	s := NewScheduler(src, ing, 15, 1)

	s.running.Store(true)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 0, ing.callCount("a-1-x.json"))
	assert.True(t, s.Status().IsRunning)
}

func TestStartAndStop(t *testing.T) {
	src := newSource("a-1-x.json")
	ing := newFakeIngestor()
	s := NewScheduler(src, ing, 1, 1)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, ing.callCount("a-1-x.json"), "initial ingestion runs synchronously")
	s.Stop()
}

func TestStartFailsWhenSourceUnavailable(t *testing.T) {
	src := newSource()
	src.listErr = errors.New("unreachable")
	s := NewScheduler(src, newFakeIngestor(), 1, 1)
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestNewSchedulerClampsSettings(t *testing.T) {
	s := NewScheduler(newSource(), newFakeIngestor(), 0, 0)
	assert.Equal(t, time.Minute, s.interval)
	assert.Equal(t, 1, s.workers)
}
