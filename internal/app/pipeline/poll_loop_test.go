package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/ModFlow/internal/adapters/store"
	"github.com/ghalamif/ModFlow/internal/app/decode"
	"github.com/ghalamif/ModFlow/internal/app/record"
	"github.com/ghalamif/ModFlow/internal/app/trigger"
	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

var block = domain.Block{Address: 600, Count: 36}

// scriptedTransport replays a fixed sequence of results, repeating the last.
type scriptedTransport struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	words []uint16
	err   error
}

func (s *scriptedTransport) ReadBlock(_ context.Context, address, count uint16) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[i]
	if st.err != nil {
		return domain.Snapshot{}, st.err
	}
	return domain.Snapshot{Address: address, Words: st.words}, nil
}

func (s *scriptedTransport) Close() error { return nil }

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failingWriter struct{ err error }

func (f failingWriter) Insert(context.Context, domain.Record) (int64, error) { return 0, f.err }

type mockObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	errors   []string
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogDebug(string, ...ports.Field) {}
func (m *mockObs) LogInfo(string, ...ports.Field)  {}
func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

type recordingPublisher struct {
	err  error
	recs []domain.Record
}

func (r *recordingPublisher) Publish(_ context.Context, rec domain.Record) error {
	r.recs = append(r.recs, rec)
	return r.err
}
func (r *recordingPublisher) Name() string { return "recording" }

type recordingTelemetry struct {
	triggered []bool
}

func (r *recordingTelemetry) WriteReading(_ domain.Reading, triggered bool, _ time.Time) {
	r.triggered = append(r.triggered, triggered)
}
func (r *recordingTelemetry) Close() error { return nil }

func plantWords(batch, machineOn float32) []uint16 {
	r := make(domain.Reading, 18)
	r[0] = batch
	r[1] = 1450.5
	r[10] = machineOn
	r[16] = 1
	return decode.Encode(r)
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{DSN: ":memory:"}, domain.DefaultLayout())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLoop(tr ports.Transport, w ports.RecordWriter, obs ports.Observability, opts ...Option) *PollLoop {
	return NewPollLoop(tr, block, trigger.NewLevel(trigger.Config{}), record.NewBuilder(domain.DefaultLayout()), w,
		ports.Policy{Interval: time.Millisecond, FailureDelay: time.Millisecond}, obs, opts...)
}

func TestCyclePersistsBatchRecord(t *testing.T) {
	st := openStore(t)
	obs := newMockObs()
	at := time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)
	tr := &scriptedTransport{steps: []step{{words: plantWords(3.2, 1)}}}

	loop := newLoop(tr, st, obs, WithClock(func() time.Time { return at }))
	res := loop.RunCycle(context.Background())

	require.Equal(t, OutcomePersisted, res.Outcome, "err: %v", res.Err)
	assert.NotZero(t, res.Record.ID)
	assert.Equal(t, "3", res.Record.BatchID)

	recs, err := st.ListPage(context.Background(), ports.Page{Filter: ports.Filter{BatchID: "3"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.Record.ID, recs[0].ID)
	assert.True(t, recs[0].CapturedAt.Equal(at))
	assert.Equal(t, "08:30:00", recs[0].Time)
	assert.Equal(t, 1450.5, recs[0].Values["motor_speed"])
	assert.True(t, recs[0].Flags["process_start"])

	assert.Equal(t, 1.0, obs.counter(ports.MetricRecordsPersisted))
	assert.Equal(t, float64(at.Unix()), obs.gauges[ports.MetricLastSuccessTimestamp])
}

func TestTransportFailureThenSuccess(t *testing.T) {
	st := openStore(t)
	obs := newMockObs()
	tr := &scriptedTransport{steps: []step{
		{err: &domain.TransportError{Op: "read", Endpoint: "plc:502", Err: errors.New("refused")}},
		{words: plantWords(5, 1)},
	}}
	loop := newLoop(tr, st, obs)
	ctx := context.Background()

	first := loop.RunCycle(ctx)
	assert.Equal(t, OutcomeTransportFailed, first.Outcome)
	assert.True(t, errors.Is(first.Err, domain.ErrTransport))
	n, err := st.Count(ctx, ports.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 0.0, obs.gauges[ports.MetricControllerConnected])

	second := loop.RunCycle(ctx)
	assert.Equal(t, OutcomePersisted, second.Outcome)
	n, err = st.Count(ctx, ports.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, obs.gauges[ports.MetricControllerConnected])
	assert.Equal(t, uint64(2), second.Cycle)
	assert.Equal(t, 1.0, obs.counter(ports.MetricTransportFailures))
}

func TestCycleSkipsWhenTriggerLow(t *testing.T) {
	st := openStore(t)
	obs := newMockObs()
	tel := &recordingTelemetry{}
	tr := &scriptedTransport{steps: []step{{words: plantWords(1, 0)}, {words: plantWords(1, 1)}}}
	loop := newLoop(tr, st, obs, WithTelemetry(tel))

	assert.Equal(t, OutcomeSkipped, loop.RunCycle(context.Background()).Outcome)
	assert.Equal(t, OutcomePersisted, loop.RunCycle(context.Background()).Outcome)

	assert.Equal(t, []bool{false, true}, tel.triggered)
	assert.Equal(t, 1.0, obs.counter(ports.MetricCyclesSkipped))
	assert.Equal(t, 2.0, obs.counter(ports.MetricCyclesTotal))
}

func TestCycleDecodeFailure(t *testing.T) {
	obs := newMockObs()
	tr := &scriptedTransport{steps: []step{{words: make([]uint16, 35)}}}
	loop := newLoop(tr, failingWriter{}, obs)

	res := loop.RunCycle(context.Background())
	assert.Equal(t, OutcomeDecodeFailed, res.Outcome)
	assert.True(t, errors.Is(res.Err, domain.ErrDecode))
	assert.Equal(t, []string{"decode_failed"}, obs.errors)
}

func TestCyclePersistFailureDropsRecord(t *testing.T) {
	obs := newMockObs()
	pub := &recordingPublisher{}
	tr := &scriptedTransport{steps: []step{{words: plantWords(2, 1)}}}
	w := failingWriter{err: &domain.PersistenceError{Op: "insert", Err: errors.New("locked")}}
	loop := newLoop(tr, w, obs, WithPublishers(pub))

	res := loop.RunCycle(context.Background())
	assert.Equal(t, OutcomePersistFailed, res.Outcome)
	assert.True(t, errors.Is(res.Err, domain.ErrPersistence))
	assert.True(t, res.Outcome.Failed())
	assert.Empty(t, pub.recs)
	assert.Equal(t, 1.0, obs.counter(ports.MetricPersistFailures))
}

func TestPublisherFailureDoesNotUndoInsert(t *testing.T) {
	st := openStore(t)
	obs := newMockObs()
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	tr := &scriptedTransport{steps: []step{{words: plantWords(4, 1)}}}
	loop := newLoop(tr, st, obs, WithPublishers(failing, nil, ok))

	res := loop.RunCycle(context.Background())
	require.Equal(t, OutcomePersisted, res.Outcome)
	require.Len(t, ok.recs, 1)
	assert.Equal(t, res.Record.ID, ok.recs[0].ID)
	assert.Len(t, failing.recs, 1)
	assert.Equal(t, 1.0, obs.counter(ports.MetricPublishFailures))

	n, err := st.Count(context.Background(), ports.Filter{BatchID: "4"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunStopsBetweenCycles(t *testing.T) {
	st := openStore(t)
	obs := newMockObs()
	tr := &scriptedTransport{steps: []step{{words: plantWords(6, 1)}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results []CycleResult
	loop := newLoop(tr, st, obs, WithCycleHook(func(r CycleResult) {
		results = append(results, r)
		if len(results) == 3 {
			cancel()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Equal(t, 3, tr.Calls())
	require.Len(t, results, 3)
	n, err := st.Count(context.Background(), ports.Filter{BatchID: "6"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunReturnsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	tr := &scriptedTransport{steps: []step{{words: plantWords(1, 1)}}}
	loop := newLoop(tr, failingWriter{}, newMockObs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, loop.Run(ctx))
	assert.Zero(t, tr.Calls())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "persisted", OutcomePersisted.String())
	assert.Equal(t, "transport_failed", OutcomeTransportFailed.String())
	assert.False(t, OutcomeSkipped.Failed())
	assert.Equal(t, "unknown", Outcome(99).String())
}
