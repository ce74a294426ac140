package scheduler

import (
	"testing"

	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
)

// fakeThread issues a fixed sequence of events and records completions.
type fakeThread struct {
	pending   []*event.Event
	finished  bool
	time      float64
	followUps []Thread
	completed []*event.Event
}

func (t *fakeThread) Init(os *OperatingSystem, startTime float64) { t.time = startTime }
func (t *fakeThread) Next() *event.Event {
	if len(t.pending) == 0 {
		return nil
	}
	e := t.pending[0]
	t.pending = t.pending[1:]
	return e
}
func (t *fakeThread) RegisterEventCompletion(e *event.Event) { t.completed = append(t.completed, e) }
func (t *fakeThread) IsFinished() bool                       { return t.finished }
func (t *fakeThread) SetFinished()                           { t.finished = true }
func (t *fakeThread) Time() float64                           { return t.time }
func (t *fakeThread) SetTime(tm float64)                      { t.time = tm }
func (t *fakeThread) FollowUpThreads() []Thread               { return t.followUps }

// manualDevice records submissions without completing them, so tests can
// control exactly when (and whether) RegisterEventCompletion fires.
type manualDevice struct {
	submitted []*event.Event
	idleCalls int
}

func (d *manualDevice) Submit(e *event.Event)     { d.submitted = append(d.submitted, e) }
func (d *manualDevice) ProgressSinceOSIsWaiting() { d.idleCalls++ }

// autoCompleteDevice completes every submitted event synchronously,
// stamping CurrentTime/SSDSubmissionTime the way a real SSD façade would.
type autoCompleteDevice struct {
	os *OperatingSystem
}

func (d *autoCompleteDevice) Submit(e *event.Event) {
	e.SSDSubmissionTime = e.StartTime
	e.CurrentTime = e.StartTime + e.TimeTaken
	d.os.RegisterEventCompletion(e)
}
func (d *autoCompleteDevice) ProgressSinceOSIsWaiting() {}

func newEvent(id uint32, eventType event.Type, lba uint64, start, taken float64) *event.Event {
	e := event.New(eventType, lba, start, taken)
	e.ApplicationIOID = id
	e.IsExperimentIO = true
	return e
}

func TestQueueBackpressure(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSSDQueueSize = 1
	cfg.OSLock = false
	dev := &manualDevice{}
	os := New(cfg, dev, nil)

	th := &fakeThread{pending: []*event.Event{
		newEvent(1, event.WRITE, 0, 0, 10),
		newEvent(2, event.WRITE, 1, 0, 10),
	}}
	os.SetThreads([]Thread{th})

	os.Step()
	if len(dev.submitted) != 1 {
		t.Fatalf("after first Step, submitted = %d, want 1", len(dev.submitted))
	}
	if len(os.currentlyExecutingIOs) != 1 {
		t.Fatalf("currentlyExecutingIOs = %d, want 1", len(os.currentlyExecutingIOs))
	}

	// Device queue is now full (MaxSSDQueueSize=1): a second Step must
	// not dispatch, only let the device idle.
	os.Step()
	if len(dev.submitted) != 1 {
		t.Errorf("after second Step with full queue, submitted = %d, want still 1", len(dev.submitted))
	}
	if dev.idleCalls != 1 {
		t.Errorf("idleCalls = %d, want 1", dev.idleCalls)
	}

	// Completing the in-flight event frees the queue and the second
	// write should dispatch on RegisterEventCompletion's own pickup.
	inFlight := dev.submitted[0]
	inFlight.CurrentTime = 10
	inFlight.SSDSubmissionTime = 0
	os.RegisterEventCompletion(inFlight)
	if len(dev.submitted) != 2 {
		t.Errorf("after completion, submitted = %d, want 2", len(dev.submitted))
	}
}

func TestLBASerialization(t *testing.T) {
	cfg := config.Default()
	cfg.OSLock = true
	dev := &manualDevice{}
	os := New(cfg, dev, nil)

	// Two distinct threads contending for the same LBA: without locking,
	// both would be independently dispatchable since each is its own
	// thread's queue head.
	thA := &fakeThread{pending: []*event.Event{newEvent(1, event.WRITE, 5, 0, 10)}}
	thB := &fakeThread{pending: []*event.Event{newEvent(2, event.WRITE, 5, 0, 10)}}
	os.SetThreads([]Thread{thA, thB})

	os.Step()
	if len(dev.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(dev.submitted))
	}

	// The second thread's write to the same LBA is locked out until the
	// first completes, even though the device queue has room.
	os.Step()
	if len(dev.submitted) != 1 {
		t.Errorf("second write to a locked LBA dispatched early: submitted = %d, want still 1", len(dev.submitted))
	}

	first := dev.submitted[0]
	first.CurrentTime = 10
	first.SSDSubmissionTime = 0
	os.RegisterEventCompletion(first)

	if len(dev.submitted) != 2 {
		t.Errorf("after releasing the lock, submitted = %d, want 2", len(dev.submitted))
	}
}

func TestLockDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.OSLock = false
	dev := &manualDevice{}
	os := New(cfg, dev, nil)

	thA := &fakeThread{pending: []*event.Event{newEvent(1, event.WRITE, 5, 0, 10)}}
	thB := &fakeThread{pending: []*event.Event{newEvent(2, event.WRITE, 5, 0, 10)}}
	os.SetThreads([]Thread{thA, thB})

	os.Step()
	os.Step()
	if len(dev.submitted) != 2 {
		t.Errorf("with OSLock disabled, submitted = %d, want 2 (no serialization)", len(dev.submitted))
	}
}

func TestWriteCompletionCounting(t *testing.T) {
	cfg := config.Default()
	cfg.OSLock = false
	os := New(cfg, nil, nil)
	dev := &autoCompleteDevice{os: os}
	os.device = dev

	th := &fakeThread{pending: []*event.Event{
		newEvent(1, event.WRITE, 0, 0, 10),
		newEvent(2, event.TRIM, 1, 0, 10),
		newEvent(3, event.WRITE, 2, 20, 10),
	}}
	os.SetThreads([]Thread{th})
	os.SetNumWritesToStopAfter(2)
	os.Run()

	if os.numWritesCompleted != 2 {
		t.Errorf("numWritesCompleted = %d, want 2 (TRIM must not count)", os.numWritesCompleted)
	}
}

func TestTimeAdvanceOnCompletion(t *testing.T) {
	cfg := config.Default()
	cfg.OSLock = false
	// A single-slot device queue forces the "queue was full" branch: the
	// OS must advance its clock to the completing event's CurrentTime
	// (when it actually finished) rather than its SSDSubmissionTime.
	cfg.MaxSSDQueueSize = 1
	os := New(cfg, nil, nil)
	dev := &autoCompleteDevice{os: os}
	os.device = dev

	th := &fakeThread{pending: []*event.Event{
		newEvent(1, event.WRITE, 0, 5, 10),
	}}
	os.SetThreads([]Thread{th})

	os.Step()
	if os.time != 15 {
		t.Errorf("os.time after a queue-full completion = %v, want 15 (start 5 + taken 10)", os.time)
	}
}

func TestIdleWatchdogAborts(t *testing.T) {
	cfg := config.Default()
	cfg.IdleLimit = 3
	dev := &manualDevice{}
	os := New(cfg, dev, nil)

	// A thread with no events at all: every Step is idle progress, never
	// a dispatch, so the watchdog must eventually trip.
	th := &fakeThread{}
	os.SetThreads([]Thread{th})
	os.currentlyExecutingIOs[999] = struct{}{} // force stillMoreWork so Run doesn't just exit cleanly

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected Run to panic on idle watchdog")
		}
		if _, ok := r.(*DeadlockError); !ok {
			t.Fatalf("recovered %v (%T), want *DeadlockError", r, r)
		}
	}()
	os.Run()
}

func TestFollowUpThreadChaining(t *testing.T) {
	cfg := config.Default()
	cfg.OSLock = false
	os := New(cfg, nil, nil)
	dev := &autoCompleteDevice{os: os}
	os.device = dev

	followUpA := &fakeThread{pending: []*event.Event{newEvent(10, event.WRITE, 9, 0, 1)}}
	followUpB := &fakeThread{pending: []*event.Event{newEvent(11, event.WRITE, 8, 0, 1)}}

	primary := &fakeThread{
		pending:  []*event.Event{newEvent(1, event.WRITE, 0, 0, 1)},
		followUps: []Thread{followUpA, followUpB},
	}
	os.SetThreads([]Thread{primary})

	// Completing primary's only event finishes it; the OS must install
	// both follow-ups (not just the first) and prime their events.
	primary.finished = true
	os.Step()

	if len(os.threads) != 2 {
		t.Fatalf("len(os.threads) after follow-up chaining = %d, want 2", len(os.threads))
	}
	if os.threads[0] != followUpA {
		t.Errorf("os.threads[0] = %v, want followUpA", os.threads[0])
	}
	if os.threads[1] != followUpB {
		t.Errorf("os.threads[1] = %v, want followUpB", os.threads[1])
	}
}
