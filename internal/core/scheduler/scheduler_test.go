package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSleeper advances the clock instead of blocking and stops the loop once
// the clock reaches until.
type fakeSleeper struct {
	clock *fakeClock
	until time.Time
	stop  func() bool
	slept []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	s.clock.Advance(d)
	if !s.until.IsZero() && !s.clock.Now().Before(s.until) {
		s.stop()
	}
	return ctx.Err()
}

type fakeCommitter struct {
	clock   *fakeClock
	err     error
	mu      sync.Mutex
	times   []time.Time
	repos   []string
	request []engine.CommitRequest
}

func (f *fakeCommitter) Commit(ctx context.Context, req engine.CommitRequest) (*core.CommitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	f.times = append(f.times, now)
	f.repos = append(f.repos, req.Repo)
	f.request = append(f.request, req)
	if f.err != nil {
		return nil, f.err
	}
	return &core.CommitRecord{Repo: req.Repo, CommittedAt: now, Automated: req.Automated, Message: "chore: sync config"}, nil
}

type scriptedRandom struct {
	floats []float64
}

func (s *scriptedRandom) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.99
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRandom) IntN(int) int { return 0 }

func testTarget() Target {
	return Target{
		Selector: &engine.Selector{Repos: []string{"octo/one", "octo/two"}},
		Branch:   "main",
		Path:     "activity.md",
	}
}

func newSafeMode(clock *fakeClock, committer Committer, cfg SafeModeConfig, r core.Random, until time.Time) (*SafeMode, *fakeSleeper) {
	sleeper := &fakeSleeper{clock: clock, until: until}
	s := &SafeMode{
		Runtime: Runtime{
			Committer: committer,
			Target:    testTarget(),
			Sleeper:   sleeper,
			Random:    r,
			Clock:     clock.Now,
			Location:  time.UTC,
		},
		Config: cfg,
	}
	sleeper.stop = s.Stop
	return s, sleeper
}

func TestSafeModeNeverCommitsDuringQuietHours(t *testing.T) {
	start := time.Date(2025, 1, 6, 22, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	committer := &fakeCommitter{clock: clock}
	cfg := DefaultSafeModeConfig()
	s, _ := newSafeMode(clock, committer, cfg, rand.New(rand.NewPCG(11, 12)), start.AddDate(0, 0, 14))

	require.NoError(t, s.Run(context.Background()))
	require.NotEmpty(t, committer.times)
	for _, ts := range committer.times {
		require.False(t, cfg.QuietHours.Contains(ts.Hour()), ts)
	}
	for _, req := range committer.request {
		require.True(t, req.Automated)
		require.Equal(t, ModeSafe, req.Mode)
	}
	require.Equal(t, StateIdle, s.State())
}

func TestSafeModeDailyCap(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	committer := &fakeCommitter{clock: clock}
	cfg := SafeModeConfig{
		MinDelay:         10 * time.Minute,
		MaxDelay:         10 * time.Minute,
		MaxCommitsPerDay: 3,
		WorkdayBias:      1,
	}
	s, _ := newSafeMode(clock, committer, cfg, rand.New(rand.NewPCG(1, 1)), start.AddDate(0, 0, 3))

	require.NoError(t, s.Run(context.Background()))

	perDay := map[string]int{}
	for _, ts := range committer.times {
		perDay[ts.Format(time.DateOnly)]++
	}
	require.Equal(t, map[string]int{"2025-01-06": 3, "2025-01-07": 3, "2025-01-08": 3}, perDay)
	require.Equal(t, []string{"octo/one", "octo/two", "octo/one"}, committer.repos[:3])
	require.WithinDuration(t, start.Add(13*time.Minute), committer.times[0], time.Millisecond)
}

func TestSafeModeFailuresDoNotCountTowardCap(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	committer := &fakeCommitter{clock: clock, err: errors.New("boom")}
	cfg := SafeModeConfig{
		MinDelay:         time.Hour,
		MaxDelay:         time.Hour,
		MaxCommitsPerDay: 2,
		WorkdayBias:      1,
	}
	s, _ := newSafeMode(clock, committer, cfg, rand.New(rand.NewPCG(2, 2)), start.Add(12*time.Hour))

	require.NoError(t, s.Run(context.Background()))
	require.Greater(t, len(committer.times), 2)
	status := s.Status()
	require.Zero(t, status.Commits)
	require.Equal(t, len(committer.times), status.Failures)
}

func TestSafeModeWeekendSkipsMoreOften(t *testing.T) {
	cfg := SafeModeConfig{
		MinDelay:         time.Hour,
		MaxDelay:         3 * time.Hour,
		SkipProbability:  0.5,
		MaxCommitsPerDay: 10,
		WorkdayBias:      1,
	}

	t.Run("weekend", func(t *testing.T) {
		start := time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)
		clock := &fakeClock{now: start}
		committer := &fakeCommitter{clock: clock}
		var events []core.Event
		s, sleeper := newSafeMode(clock, committer, cfg, &scriptedRandom{floats: []float64{0.7, 0.5}}, start.Add(time.Minute))
		s.Events = func(e core.Event) { events = append(events, e) }

		require.NoError(t, s.Run(context.Background()))
		require.Equal(t, []time.Duration{2 * time.Hour}, sleeper.slept)
		require.Empty(t, committer.times)
		require.Equal(t, core.EventStarted, events[0].Type)
		require.Equal(t, core.EventSkipped, events[1].Type)
		require.Equal(t, core.EventStopped, events[len(events)-1].Type)
	})

	t.Run("weekday", func(t *testing.T) {
		start := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
		clock := &fakeClock{now: start}
		committer := &fakeCommitter{clock: clock}
		s, sleeper := newSafeMode(clock, committer, cfg, &scriptedRandom{floats: []float64{0.7, 0.5}}, start.Add(time.Minute))

		require.NoError(t, s.Run(context.Background()))
		require.Len(t, sleeper.slept, 1)
		require.InDelta(t, float64(84*time.Minute), float64(sleeper.slept[0]), float64(time.Millisecond))
		require.Empty(t, committer.times)
	})
}

func TestSafeModeWeekendSuppression(t *testing.T) {
	start := time.Date(2025, 1, 12, 15, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	committer := &fakeCommitter{clock: clock}
	cfg := SafeModeConfig{
		MinDelay:         time.Hour,
		MaxDelay:         2 * time.Hour,
		MaxCommitsPerDay: 10,
		WorkdayBias:      0.75,
	}
	// 0.2 < 1-0.75 suppresses; skip probability 0 never triggers.
	s, sleeper := newSafeMode(clock, committer, cfg, &scriptedRandom{floats: []float64{0.5, 0.2}}, start.Add(time.Minute))

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, []time.Duration{2 * time.Hour}, sleeper.slept)
	require.Empty(t, committer.times)
}

func TestSafeModeRejectsInvalidTarget(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)}
	committer := &fakeCommitter{clock: clock}
	s, _ := newSafeMode(clock, committer, DefaultSafeModeConfig(), nil, time.Time{})
	s.Target.Path = "../escape.md"

	err := s.Run(context.Background())
	require.ErrorIs(t, err, engine.ErrValidation)
	require.Equal(t, StateIdle, s.State())

	s.Target = testTarget()
	s.Config.MaxDelay = time.Minute
	require.ErrorIs(t, s.Run(context.Background()), engine.ErrConfiguration)
}

func TestSafeModeStopInterruptsSleep(t *testing.T) {
	committer := &fakeCommitter{clock: &fakeClock{now: time.Now()}}
	waiting := make(chan struct{}, 1)
	s := &SafeMode{
		Runtime: Runtime{
			Committer: committer,
			Target:    testTarget(),
			Location:  time.UTC,
			Events: func(e core.Event) {
				if e.Type == core.EventWaiting || e.Type == core.EventSkipped {
					select {
					case waiting <- struct{}{}:
					default:
					}
				}
			},
		},
		Config: SafeModeConfig{
			MinDelay:         time.Hour,
			MaxDelay:         time.Hour,
			MaxCommitsPerDay: 5,
			WorkdayBias:      1,
		},
	}

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), ErrAlreadyRunning)

	select {
	case <-waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never reached a wait")
	}
	require.Equal(t, StateRunning, s.State())
	require.NotNil(t, s.Status().NextActionAt)

	require.True(t, s.Stop())
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(waitCtx))
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, committer.times)
	require.False(t, s.Stop())

	// a stopped scheduler can be started again
	require.NoError(t, s.Start(ctx))
	s.Stop()
	require.NoError(t, s.Wait(waitCtx))
}

func TestFixedIntervalJitterAndCommitOnStart(t *testing.T) {
	start := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	committer := &fakeCommitter{clock: clock}
	sleeper := &fakeSleeper{clock: clock, until: start.Add(24 * time.Hour)}
	f := &FixedInterval{
		Runtime: Runtime{
			Committer: committer,
			Target:    testTarget(),
			Sleeper:   sleeper,
			Random:    rand.New(rand.NewPCG(5, 6)),
			Clock:     clock.Now,
		},
		Interval:      time.Hour,
		CommitOnStart: true,
	}
	sleeper.stop = f.Stop

	require.NoError(t, f.Run(context.Background()))
	require.Equal(t, start, committer.times[0])
	require.Len(t, committer.times, len(sleeper.slept))
	for _, d := range sleeper.slept {
		require.GreaterOrEqual(t, d, 45*time.Minute)
		require.LessOrEqual(t, d, 75*time.Minute)
	}
	require.Equal(t, len(committer.times), f.Status().Commits)
}

func TestFixedIntervalRequiresInterval(t *testing.T) {
	f := &FixedInterval{Runtime: Runtime{Committer: &fakeCommitter{}, Target: testTarget()}}
	require.ErrorIs(t, f.Run(context.Background()), engine.ErrConfiguration)
}

func TestJitterBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 1000; i++ {
		d := Jitter(r, time.Hour, 0.3)
		require.GreaterOrEqual(t, d, 42*time.Minute)
		require.LessOrEqual(t, d, 78*time.Minute)
	}
	require.Equal(t, time.Hour, Jitter(r, time.Hour, 0))
	require.Equal(t, time.Minute, Between(r, time.Minute, time.Minute))
}

func TestQuietHours(t *testing.T) {
	wrap := QuietHours{Start: 23, End: 7}
	require.True(t, wrap.Contains(23))
	require.True(t, wrap.Contains(0))
	require.True(t, wrap.Contains(6))
	require.False(t, wrap.Contains(7))
	require.False(t, wrap.Contains(22))

	day := QuietHours{Start: 12, End: 14}
	require.True(t, day.Contains(13))
	require.False(t, day.Contains(14))
	require.False(t, QuietHours{}.Contains(0))

	now := time.Date(2025, 1, 6, 23, 30, 0, 0, time.UTC)
	require.Equal(t, 7*time.Hour+30*time.Minute, wrap.Until(now))
}

func TestEventLogKeepsMostRecent(t *testing.T) {
	log := NewEventLog(3)
	for i := 0; i < 5; i++ {
		log.Add(core.Event{Type: core.EventCommitted, Detail: string(rune('a' + i))})
	}
	recent := log.Recent(0)
	require.Len(t, recent, 3)
	require.Equal(t, "c", recent[0].Detail)
	require.Equal(t, "e", log.Recent(1)[0].Detail)

	var seen int
	Tee(log.Sink(), nil, func(core.Event) { seen++ })(core.Event{Type: core.EventStopped})
	require.Equal(t, 1, seen)
	require.Equal(t, core.EventStopped, log.Recent(1)[0].Type)
}
