/*
 * ssdcore - Host scheduler / operating system.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package scheduler is the discrete-event host: it keeps one FIFO queue of
// pending events per workload thread, dispatches the unlocked event with
// the earliest start time down to the device, and advances its own
// logical clock only in response to a device completion. No
// goroutine, timer, or wall-clock ever drives it.
package scheduler

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
)

const undefinedTime = -1

// Thread is one workload generator: a source of events plus the callbacks
// the scheduler uses to drive it forward and hand back completions.
type Thread interface {
	// Init prepares the thread to start issuing events no earlier than
	// startTime.
	Init(os *OperatingSystem, startTime float64)
	// Next returns the thread's next event, or nil if it has none ready
	// to issue yet.
	Next() *event.Event
	// RegisterEventCompletion notifies the thread that e has finished.
	RegisterEventCompletion(e *event.Event)
	IsFinished() bool
	SetFinished()
	Time() float64
	SetTime(t float64)
	// FollowUpThreads returns the threads that should replace this one
	// once it finishes, or nil if there are none.
	FollowUpThreads() []Thread
}

// Device is the scheduler's only collaborator below it: something that
// accepts a (possibly chained) event and, at some later point of its own
// choosing, calls back into RegisterEventCompletion.
type Device interface {
	Submit(e *event.Event)
	// ProgressSinceOSIsWaiting is called when the scheduler has nothing
	// dispatchable; it gives the device a chance to make progress and
	// eventually produce a completion.
	ProgressSinceOSIsWaiting()
}

// DeadlockError is panicked by Run when the idle watchdog trips: no event
// was dispatched for IdleLimit consecutive idle ticks while I/O was still
// outstanding.
type DeadlockError struct {
	IdleTime   int64
	RunningIOs []uint32
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduler: idle for %d ticks with %d IOs still outstanding", e.IdleTime, len(e.RunningIOs))
}

// PendingEvents holds one FIFO queue of not-yet-dispatched events per
// thread.
type PendingEvents struct {
	queues    [][]*event.Event
	numEvents int
}

// NewPendingEvents allocates numThreads empty queues.
func NewPendingEvents(numThreads int) *PendingEvents {
	return &PendingEvents{queues: make([][]*event.Event, numThreads)}
}

// Pop removes and returns the head of thread i's queue, or nil if empty.
func (p *PendingEvents) Pop(i int) *event.Event {
	q := p.queues[i]
	if len(q) == 0 {
		return nil
	}
	e := q[0]
	p.queues[i] = q[1:]
	p.numEvents--
	return e
}

// Append adds e to the tail of thread i's queue.
func (p *PendingEvents) Append(i int, e *event.Event) {
	p.queues[i] = append(p.queues[i], e)
	p.numEvents++
}

// Peek returns the head of thread i's queue without removing it, or nil.
func (p *PendingEvents) Peek(i int) *event.Event {
	q := p.queues[i]
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// PushBack grows PendingEvents by one empty queue, for a newly spawned
// follow-up thread.
func (p *PendingEvents) PushBack() {
	p.queues = append(p.queues, nil)
}

// Size is the number of thread queues.
func (p *PendingEvents) Size() int {
	return len(p.queues)
}

// NumPendingEvents is the total number of queued-but-not-dispatched
// events across all threads.
func (p *PendingEvents) NumPendingEvents() int {
	return p.numEvents
}

// NumPendingIOsForThread is how many events are queued for thread i.
func (p *PendingEvents) NumPendingIOsForThread(i int) int {
	return len(p.queues[i])
}

// OperatingSystem is the discrete-event host scheduler: per-thread FIFO
// queues, per-LBA lock maps, and a bounded device queue as its only
// backpressure mechanism.
type OperatingSystem struct {
	cfg    *config.Config
	device Device

	events  *PendingEvents
	threads []Thread

	currentlyExecutingIOs map[uint32]struct{}
	appIDToThreadID       map[uint32]int

	readLocks  map[uint64][]int
	writeLocks map[uint64][]int
	trimLocks  map[uint64][]int

	numWritesToStopAfter int64 // undefinedTime means unset
	numWritesCompleted   int64
	counterForUser       int

	timeOfExperimentStart    float64 // undefinedTime means unset
	timeOfLastEventCompleted float64
	idleTime                 int64
	time                     float64

	lastDispatchedEventMinimalFinishTime float64

	logger *slog.Logger
}

// New builds an OperatingSystem over cfg, submitting events to device.
func New(cfg *config.Config, device Device, logger *slog.Logger) *OperatingSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperatingSystem{
		cfg:                      cfg,
		device:                   device,
		currentlyExecutingIOs:    make(map[uint32]struct{}),
		appIDToThreadID:          make(map[uint32]int),
		readLocks:                make(map[uint64][]int),
		writeLocks:               make(map[uint64][]int),
		trimLocks:                make(map[uint64][]int),
		numWritesToStopAfter:     undefinedTime,
		timeOfExperimentStart:    undefinedTime,
		timeOfLastEventCompleted: 1,
		lastDispatchedEventMinimalFinishTime: 1,
		logger:                               logger,
	}
}

// SetThreads replaces the running workload with new_threads, initializing
// each one and priming its first batch of events.
func (os *OperatingSystem) SetThreads(threads []Thread) {
	if len(threads) == 0 {
		panic("scheduler: SetThreads requires at least one thread")
	}
	os.threads = threads
	os.numWritesCompleted = 0
	os.events = NewPendingEvents(len(threads))
	for i, t := range threads {
		t.Init(os, os.time)
		os.getNextIOs(i)
	}
}

// SetNumWritesToStopAfter arms the experiment-completion condition: Run
// stops once num_writes experiment writes have completed.
func (os *OperatingSystem) SetNumWritesToStopAfter(num int64) {
	os.numWritesToStopAfter = num
}

// GetExperimentRuntime is the wall-clock span (in simulated time) from the
// first experiment I/O's dispatch to the last event's completion.
func (os *OperatingSystem) GetExperimentRuntime() float64 {
	return os.timeOfLastEventCompleted - os.timeOfExperimentStart
}

// Run drives the simulation until either the armed write-count target is
// reached or there is no more outstanding or queued work. It panics with
// *DeadlockError if the device never produces a completion for IdleLimit
// consecutive idle ticks while work remains outstanding.
func (os *OperatingSystem) Run() {
	for {
		os.Step()
		if os.Done() {
			break
		}
	}

	for _, t := range os.threads {
		t.SetFinished()
	}
}

// Step performs exactly one scheduling decision: dispatch the soonest
// unlocked event if the device queue has room, otherwise let the device
// make idle progress. Exported so tests can drive the scheduler one
// decision at a time.
func (os *OperatingSystem) Step() {
	threadID := os.pickUnlockedEventWithShortestStartTime()
	noPendingEvent := threadID == -1
	queueIsFull := len(os.currentlyExecutingIOs) >= os.cfg.MaxSSDQueueSize

	if noPendingEvent || queueIsFull {
		if os.idleTime >= int64(os.cfg.IdleLimit) {
			panic(&DeadlockError{IdleTime: os.idleTime, RunningIOs: os.runningIOs()})
		}
		os.device.ProgressSinceOSIsWaiting()
		os.idleTime++
	} else {
		os.dispatchEvent(threadID)
	}

	if os.numWritesToStopAfter > 0 {
		if pct := 10 * float64(os.numWritesCompleted) / float64(os.numWritesToStopAfter); pct > float64(os.counterForUser) {
			os.logger.Info("experiment progress", "percent", os.counterForUser*10, "writes_completed", os.numWritesCompleted)
			os.counterForUser++
		}
	}
}

// Done reports whether Run's loop condition has been satisfied: the
// armed write-count target was reached, or there is no outstanding or
// queued work left.
func (os *OperatingSystem) Done() bool {
	finishedExperiment := os.numWritesToStopAfter != undefinedTime && os.numWritesToStopAfter <= os.numWritesCompleted
	stillMoreWork := len(os.currentlyExecutingIOs) > 0 || os.events.NumPendingEvents() > 0
	return finishedExperiment || !stillMoreWork
}

func (os *OperatingSystem) runningIOs() []uint32 {
	ids := make([]uint32, 0, len(os.currentlyExecutingIOs))
	for id := range os.currentlyExecutingIOs {
		ids = append(ids, id)
	}
	return ids
}

// pickUnlockedEventWithShortestStartTime returns the thread index whose
// queue head has the earliest start time among those not LBA-locked, or
// -1 if none qualify.
func (os *OperatingSystem) pickUnlockedEventWithShortestStartTime() int {
	soonest := math.MaxFloat64
	threadID := -1
	for i := 0; i < os.events.Size(); i++ {
		e := os.events.Peek(i)
		if e != nil && e.StartTime < soonest && !os.isLBALocked(e.LogicalAddress) {
			soonest = e.StartTime
			threadID = i
		}
	}
	return threadID
}

// dispatchEvent pops thread_id's head event and submits it to the device.
func (os *OperatingSystem) dispatchEvent(threadID int) {
	os.idleTime = 0
	e := os.events.Pop(threadID)
	if e.StartTime < os.time {
		e.IncrOSWaitTime(os.time - e.StartTime)
	}

	os.currentlyExecutingIOs[e.ApplicationIOID] = struct{}{}
	os.appIDToThreadID[e.ApplicationIOID] = threadID

	minCompletion := os.eventMinimalCompletionTime(e)
	if minCompletion > os.lastDispatchedEventMinimalFinishTime {
		os.lastDispatchedEventMinimalFinishTime = minCompletion
	}

	os.lock(e, threadID)

	if os.timeOfExperimentStart == undefinedTime && e.IsExperimentIO {
		os.timeOfExperimentStart = math.Max(e.StartTime, os.time)
	}

	os.device.Submit(e)
}

// getNextIOs pulls events from thread_id until it has none ready or has
// reached its outstanding-IO cap, matching the thread's own throttling.
func (os *OperatingSystem) getNextIOs(threadID int) {
	t := os.threads[threadID]
	for {
		e := t.Next()
		if e != nil {
			if e.StartTime < os.time {
				e.StartTime = os.time
			}
			os.events.Append(threadID, e)
		}
		if e == nil || os.events.NumPendingIOsForThread(threadID) >= os.cfg.MaxOutstandingIOsPerThread {
			break
		}
	}
}

// setupFollowUpThreads replaces a finished thread with whatever follow-up
// threads it names, each initialized at time and primed with its own
// first batch of events. The source indexed follow_up_threads[thread_id]
// here, which is out of bounds for any follow-up beyond the first;
// spec.md names this as a bug to fix, and the index used below is always
// the follow-up's own position, i and the freshly appended slot,
// respectively.
func (os *OperatingSystem) setupFollowUpThreads(threadID int, atTime float64) {
	thread := os.threads[threadID]
	followUps := thread.FollowUpThreads()
	if len(followUps) == 0 {
		return
	}

	os.threads[threadID] = followUps[0]
	os.threads[threadID].Init(os, atTime)
	os.getNextIOs(threadID)

	for i := 1; i < len(followUps); i++ {
		os.threads = append(os.threads, followUps[i])
		newThreadID := len(os.threads) - 1
		os.threads[newThreadID].Init(os, atTime)
		os.events.PushBack()
		os.getNextIOs(newThreadID)
	}
}

// RegisterEventCompletion is the device's callback once e has finished.
// It releases e's lock, feeds the completion back to its owning thread,
// tops up that thread's pending queue, advances the scheduler's clock,
// and immediately dispatches the next unlocked event if the device queue
// has room.
func (os *OperatingSystem) RegisterEventCompletion(e *event.Event) {
	queueWasFull := len(os.currentlyExecutingIOs) == os.cfg.MaxSSDQueueSize
	delete(os.currentlyExecutingIOs, e.ApplicationIOID)

	os.releaseLock(e)

	threadID := os.appIDToThreadID[e.ApplicationIOID]
	thread := os.threads[threadID]
	thread.RegisterEventCompletion(e)
	os.getNextIOs(threadID)

	if e.CountsAsCompletedWrite() {
		os.numWritesCompleted++
	}

	if thread.IsFinished() {
		os.setupFollowUpThreads(threadID, e.CurrentTime)
	}

	newTime := e.SSDSubmissionTime
	if queueWasFull {
		newTime = e.CurrentTime
	}
	if newTime > os.time {
		os.time = newTime
	}
	os.updateThreadTimes(os.time)

	if e.CurrentTime > os.timeOfLastEventCompleted {
		os.timeOfLastEventCompleted = e.CurrentTime
	}

	if next := os.pickUnlockedEventWithShortestStartTime(); next != -1 {
		os.dispatchEvent(next)
	}
}

func (os *OperatingSystem) updateThreadTimes(t float64) {
	for _, th := range os.threads {
		if !th.IsFinished() && th.Time() < t {
			th.SetTime(t + 1)
		}
	}
}

// eventMinimalCompletionTime estimates how soon e could possibly finish.
// dispatchEvent keeps the running maximum in
// lastDispatchedEventMinimalFinishTime; no scheduling decision reads it.
func (os *OperatingSystem) eventMinimalCompletionTime(e *event.Event) float64 {
	result := e.StartTime
	switch e.EventType {
	case event.WRITE:
		result += 2*os.cfg.BusCtrlDelay + os.cfg.BusDataDelay + os.cfg.PageWriteDelay
	case event.READ:
		result += 2*os.cfg.BusCtrlDelay + os.cfg.BusDataDelay + os.cfg.PageReadDelay
	}
	return result
}

// lockMapFor returns the lock map e's type serializes through: reads and
// read-transfers share one map, writes and trims each have their own.
func (os *OperatingSystem) lockMapFor(t event.Type) map[uint64][]int {
	switch t {
	case event.READ, event.ReadTransfer:
		return os.readLocks
	case event.WRITE:
		return os.writeLocks
	default:
		return os.trimLocks
	}
}

// lock enqueues thread_id behind e's logical address in the appropriate
// lock map, unless e is a flexible range read (those bypass locking).
func (os *OperatingSystem) lock(e *event.Event, threadID int) {
	if e.IsFlexibleRead {
		return
	}
	m := os.lockMapFor(e.EventType)
	m[e.LogicalAddress] = append(m[e.LogicalAddress], threadID)
}

// releaseLock pops the front of e's lock queue, removing the entry
// entirely once it empties.
func (os *OperatingSystem) releaseLock(e *event.Event) {
	m := os.lockMapFor(e.EventType)
	q, ok := m[e.LogicalAddress]
	if !ok || len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(m, e.LogicalAddress)
	} else {
		m[e.LogicalAddress] = q
	}
}

// isLBALocked reports whether lba currently has any outstanding read,
// write, or trim ahead of it. Locking is a global on/off policy switch,
// not per-event.
func (os *OperatingSystem) isLBALocked(lba uint64) bool {
	if !os.cfg.OSLock {
		return false
	}
	if _, ok := os.readLocks[lba]; ok {
		return true
	}
	if _, ok := os.writeLocks[lba]; ok {
		return true
	}
	if _, ok := os.trimLocks[lba]; ok {
		return true
	}
	return false
}

// AddressRange names a span of logical addresses for a flexible reader.
type AddressRange struct {
	Start, End uint64
}

// FlexibleReader is a range-read collaborator that bypasses the scheduler's
// per-LBA lock queues. Building its actual read-fan-out semantics against
// the FTL is out of scope here; it exists only so CreateFlexibleReader has
// something to hand back that satisfies "bypasses locking".
type FlexibleReader struct {
	Ranges []AddressRange
}

// CreateFlexibleReader builds a FlexibleReader over ranges.
func (os *OperatingSystem) CreateFlexibleReader(ranges []AddressRange) *FlexibleReader {
	return &FlexibleReader{Ranges: ranges}
}
