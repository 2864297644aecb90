package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest("/auth/me", "GET", 401, time.Millisecond)
			m.RecordError("/auth/me", "GET", "TOKEN_EXPIRED")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.RequestCount("/auth/me", "GET", 401))
	assert.Equal(t, int64(50), m.ErrorCount("/auth/me", "GET", "TOKEN_EXPIRED"))
	assert.Zero(t, m.ErrorCount("/auth/me", "GET", "INVALID_TOKEN"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	assert.Zero(t, m.ErrorCount("/", "GET", "X"))
}
