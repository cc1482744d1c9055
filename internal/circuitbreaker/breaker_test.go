package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBreaker(t *testing.T, clock *fakeClock) *Breaker {
	t.Helper()

	b, err := New(&Config{
		FailureThreshold: 3,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		Logger:           zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	b.now = clock.now
	return b
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerOpensAtThreshold(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := newTestBreaker(t, clock)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold stays closed")

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.Status().State)
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := newTestBreaker(t, clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.False(t, b.Allow())

	clock.advance(31 * time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed admits a probe")
	assert.False(t, b.Allow(), "only one probe at a time")

	b.RecordSuccess()
	assert.Equal(t, "closed", b.Status().State)
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := newTestBreaker(t, clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, "open", b.Status().State)
	assert.False(t, b.Allow())

	// A fresh cooldown applies after the failed probe.
	clock.advance(31 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerWindowPrunesOldFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := newTestBreaker(t, clock)

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(2 * time.Minute)
	b.RecordFailure()

	// Only the last failure is inside the window.
	assert.True(t, b.Allow())
	assert.Equal(t, 1, b.Status().RecentFailures)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := newTestBreaker(t, clock)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.True(t, b.Allow())
	assert.Equal(t, "closed", b.Status().State)
}

func TestBreakerConfigValidation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"zero threshold", &Config{Window: time.Minute, Cooldown: time.Minute, Logger: logger}},
		{"zero window", &Config{FailureThreshold: 3, Cooldown: time.Minute, Logger: logger}},
		{"zero cooldown", &Config{FailureThreshold: 3, Window: time.Minute, Logger: logger}},
		{"nil logger", &Config{FailureThreshold: 3, Window: time.Minute, Cooldown: time.Minute}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			assert.Error(t, err)
		})
	}
}
