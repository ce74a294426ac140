/*
 * ssdcore - Reference SSD device façade.
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

// Package deviceio is the reference SSD façade: the scheduler's only
// collaborator below the FTL. It accepts events, routes them through the
// FTL for address translation, and schedules a later completion callback
// on a sorted pending-completion list, the same shape as the teacher's
// cycle-delta event list but keyed by absolute target time rather than a
// fixed advance quantum, since this façade jumps straight to the next
// ready completion instead of ticking one cycle at a time.
package deviceio

import (
	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
	"github.com/flashsim/ssdcore/ftl"
)

// completion is one scheduled callback, ordered by absolute target time.
type completion struct {
	target float64
	event  *event.Event
	prev, next *completion
}

// SSD is the black-box device the scheduler submits events to. Its FTL
// is set after construction with SetFTL, breaking the otherwise circular
// dependency between the FTL (which needs a Controller to issue against)
// and the SSD (which needs an FTL to route reads and writes through).
type SSD struct {
	cfg          *config.Config
	translation  *ftl.FTL
	onCompletion func(*event.Event)

	head, tail  *completion
	currentTime float64
}

// New builds an SSD over cfg. onCompletion is called once per completed
// event, normally scheduler.OperatingSystem.RegisterEventCompletion.
func New(cfg *config.Config, onCompletion func(*event.Event)) *SSD {
	return &SSD{cfg: cfg, onCompletion: onCompletion}
}

// SetFTL wires the translation layer this SSD routes reads and writes
// through. Must be called once before Submit.
func (s *SSD) SetFTL(f *ftl.FTL) {
	s.translation = f
}

// GetFTL exposes the translation layer, e.g. for a flexible range reader.
func (s *SSD) GetFTL() *ftl.FTL {
	return s.translation
}

// Submit routes e to the FTL for address translation and media
// scheduling. TRIM and NOOP events have no mapping to resolve and are
// issued directly.
func (s *SSD) Submit(e *event.Event) {
	switch e.EventType {
	case event.WRITE:
		s.translation.Write(e)
	case event.READ, event.ReadCommand, event.ReadTransfer:
		s.translation.Read(e)
	default:
		s.Issue(e)
	}
}

// Issue implements ftl.Controller: it schedules e's completion at
// StartTime+TimeTaken+mediaDelay (never earlier than the device's
// current clock) and always accepts. e.TimeTaken is stable by the time
// Issue is called -- the only sub-event the FTL ever chains onto e is a
// zero-TimeTaken NOOP, so Consolidate folding it in afterward does not
// change the schedule.
func (s *SSD) Issue(e *event.Event) ftl.Status {
	target := e.StartTime + e.TimeTaken + s.mediaDelay(e)
	if target < s.currentTime {
		target = s.currentTime
	}
	e.SSDSubmissionTime = e.StartTime
	e.CurrentTime = target
	s.insert(e, target)
	return ftl.SUCCESS
}

// mediaDelay is the page-program or page-read cost Issue charges on top
// of e's own TimeTaken, from Config; zero for a NOOP.
func (s *SSD) mediaDelay(e *event.Event) float64 {
	if e.Noop || e.EventType == event.NOOP {
		return 0
	}
	switch e.EventType {
	case event.WRITE:
		return s.cfg.PageWriteDelay
	case event.READ, event.ReadCommand, event.ReadTransfer:
		return s.cfg.PageReadDelay
	default:
		return 0
	}
}

// ProgressSinceOSIsWaiting is called when the scheduler has nothing
// dispatchable: it jumps the device clock straight to the earliest
// pending completion and fires everything now due.
func (s *SSD) ProgressSinceOSIsWaiting() {
	if s.head == nil {
		return
	}
	s.advanceTo(s.head.target)
}

func (s *SSD) insert(e *event.Event, target float64) {
	c := &completion{target: target, event: e}
	if s.head == nil {
		s.head, s.tail = c, c
		return
	}
	for cur := s.head; cur != nil; cur = cur.next {
		if target <= cur.target {
			c.prev = cur.prev
			c.next = cur
			cur.prev = c
			if c.prev != nil {
				c.prev.next = c
			} else {
				s.head = c
			}
			return
		}
	}
	c.prev = s.tail
	s.tail.next = c
	s.tail = c
}

func (s *SSD) advanceTo(target float64) {
	if target > s.currentTime {
		s.currentTime = target
	}
	for s.head != nil && s.head.target <= s.currentTime {
		c := s.head
		s.head = c.next
		if s.head != nil {
			s.head.prev = nil
		} else {
			s.tail = nil
		}
		s.onCompletion(c.event)
	}
}
