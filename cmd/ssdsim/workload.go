/*
 * ssdcore - Demo entry point.
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

package main

import (
	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
	"github.com/flashsim/ssdcore/hotness"
	"github.com/flashsim/ssdcore/scheduler"
)

// sequentialWorkload is a minimal workload generator: it writes LBAs in
// round-robin order and reads back every fourth one, feeding every
// completion into a hotness measurer. The workload generator's own
// traffic pattern is not part of the simulator core's interface -- this
// is one stand-in an experiment could use, not the only one.
type sequentialWorkload struct {
	cfg      *config.Config
	hot      *hotness.Measurer
	lbaCount uint64

	lba      uint64
	nextID   uint32
	finished bool
	time     float64
}

func newSequentialWorkload(cfg *config.Config, hot *hotness.Measurer, lbaCount uint64) *sequentialWorkload {
	return &sequentialWorkload{cfg: cfg, hot: hot, lbaCount: lbaCount}
}

func (w *sequentialWorkload) Init(_ *scheduler.OperatingSystem, startTime float64) {
	w.time = startTime
}

// Next emits a WRITE to the next LBA in round-robin order, except every
// fourth call, which reads back the most recently written LBA instead.
// TimeTaken carries only the bus/controller overhead; deviceio.SSD.Issue
// adds the page program/read media delay itself, so charging it here too
// would double-count it.
func (w *sequentialWorkload) Next() *event.Event {
	id := w.nextID
	w.nextID++

	busOverhead := 2*w.cfg.BusCtrlDelay + w.cfg.BusDataDelay

	var e *event.Event
	if id > 0 && id%4 == 3 {
		e = event.New(event.READ, w.lba, w.time, busOverhead)
	} else {
		w.lba = (w.lba + 1) % w.lbaCount
		e = event.New(event.WRITE, w.lba, w.time, busOverhead)
	}
	e.ApplicationIOID = id
	e.IsExperimentIO = true
	w.time += e.TimeTaken
	return e
}

// RegisterEventCompletion feeds the hotness measurer, which only ever
// accepts WRITE or ReadCommand events: a completed READ is reported to
// it as the ReadCommand-phase event the measurer's precondition expects,
// not the dispatched READ itself.
func (w *sequentialWorkload) RegisterEventCompletion(e *event.Event) {
	switch e.EventType {
	case event.WRITE:
		w.hot.RegisterEvent(e)
	case event.READ, event.ReadTransfer:
		hotEvent := event.New(event.ReadCommand, e.LogicalAddress, e.StartTime, e.TimeTaken)
		hotEvent.PhysicalAddress = e.PhysicalAddress
		w.hot.RegisterEvent(hotEvent)
	}
}

func (w *sequentialWorkload) IsFinished() bool         { return w.finished }
func (w *sequentialWorkload) SetFinished()             { w.finished = true }
func (w *sequentialWorkload) Time() float64            { return w.time }
func (w *sequentialWorkload) SetTime(t float64)        { w.time = t }
func (w *sequentialWorkload) FollowUpThreads() []scheduler.Thread { return nil }
