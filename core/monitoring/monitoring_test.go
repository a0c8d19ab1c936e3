package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordMonitor struct {
	mu      sync.Mutex
	errs    []error
	tags    []map[string]string
	panics  []any
	flushed time.Duration
}

func (m *recordMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}

func (m *recordMonitor) CapturePanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = append(m.panics, v)
}

func (m *recordMonitor) Flush(d time.Duration) { m.flushed = d }

func TestCaptureForwardsToMonitor(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"stage": "publish"})
	Flush(time.Second)

	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "boom")
	assert.Equal(t, "publish", rec.tags[0]["stage"])
	assert.Equal(t, time.Second, rec.flushed)
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(nil)

	assert.PanicsWithValue(t, "bad", func() {
		defer Recover()
		panic("bad")
	})
	assert.Equal(t, []any{"bad"}, rec.panics)
}

func TestDefaultIsNop(t *testing.T) {
	Init(nil)
	assert.NotPanics(t, func() {
		CaptureException(errors.New("ignored"), nil)
		Flush(0)
	})
}
