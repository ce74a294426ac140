/*
 * ssdcore - Event scheduler primitive
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

// Package event holds the Event record: one logical I/O operation as it
// moves from a workload generator, through the scheduler and FTL, to the
// SSD and back. An Event is owned by exactly one of a PendingEvents
// queue, the SSD's in-flight set, or a local dispatch variable at any
// instant; ownership transfers are documented at each call site rather
// than tracked by the type itself.
package event

import "github.com/flashsim/ssdcore/address"

// Type identifies the kind of I/O operation an Event represents.
type Type int

const (
	READ Type = iota
	ReadTransfer
	ReadCommand
	WRITE
	TRIM
	NOOP
)

func (t Type) String() string {
	switch t {
	case READ:
		return "READ"
	case ReadTransfer:
		return "READ_TRANSFER"
	case ReadCommand:
		return "READ_COMMAND"
	case WRITE:
		return "WRITE"
	case TRIM:
		return "TRIM"
	case NOOP:
		return "NOOP"
	default:
		return "UNKNOWN"
	}
}

// Event is an immutable-at-completion record of one I/O operation.
// Completion time is always StartTime + TimeTaken; a NOOP contributes
// timing but performs no media work.
type Event struct {
	EventType       Type
	LogicalAddress  uint64
	PhysicalAddress address.Address
	StartTime       float64
	TimeTaken       float64
	OSWaitTime      float64

	ApplicationIOID uint32
	IsExperimentIO  bool
	Noop            bool

	// IsFlexibleRead marks an event issued by a flexible range reader: it
	// spans an address range rather than one LBA, so the scheduler's
	// per-LBA lock queues do not apply to it.
	IsFlexibleRead bool

	// ReplaceAddress, when set, asks the media layer to invalidate the
	// physical page it names (the prior mapping a CMT write or eviction
	// displaced).
	ReplaceAddress *address.Address

	// Next chains an internal sub-event (e.g. a translation-page fetch)
	// onto this one. Sub-events are owned transitively by their parent
	// and are folded away by Consolidate before the parent is handed to
	// the scheduler as a single completion.
	Next *Event

	// SSDSubmissionTime and CurrentTime are stamped by the SSD façade:
	// the time the event was submitted, and the simulated time the SSD
	// has reached when it calls back. The scheduler reads both when
	// deciding how far to advance its own clock.
	SSDSubmissionTime float64
	CurrentTime       float64
}

// New builds an Event ready to be queued by a workload generator.
func New(eventType Type, logicalAddress uint64, startTime float64, timeTaken float64) *Event {
	return &Event{
		EventType:      eventType,
		LogicalAddress: logicalAddress,
		StartTime:      startTime,
		TimeTaken:      timeTaken,
	}
}

// CompletionTime is StartTime + TimeTaken for this event alone (it does
// not sum the Next chain; Consolidate does that explicitly).
func (e *Event) CompletionTime() float64 {
	return e.StartTime + e.TimeTaken
}

// IncrTimeTaken adds d to TimeTaken, e.g. a CMT hit's RAM_READ_DELAY.
func (e *Event) IncrTimeTaken(d float64) {
	e.TimeTaken += d
}

// IncrOSWaitTime adds d to OSWaitTime, recording time the event spent
// waiting past its scheduled start because the scheduler was busy.
func (e *Event) IncrOSWaitTime(d float64) {
	e.OSWaitTime += d
}

// Last returns the tail of the Next chain (possibly e itself).
func (e *Event) Last() *Event {
	cur := e
	for cur.Next != nil {
		cur = cur.Next
	}
	return cur
}

// AppendNext chains sub onto the tail of e's Next list.
func (e *Event) AppendNext(sub *Event) {
	e.Last().Next = sub
}

// Consolidate merges e's Next chain into a single scheduler-visible
// completion: the chain's total TimeTaken is folded onto e and the chain
// is discarded. The exact internal semantics of the source's
// consolidate_metaevent are not visible in the spec; this is the only
// externally observable effect the spec requires of it -- once merged,
// the sub-events no longer participate in scheduling on their own.
func (e *Event) Consolidate() {
	cur := e.Next
	for cur != nil {
		e.TimeTaken += cur.TimeTaken
		cur = cur.Next
	}
	e.Next = nil
}

// CountsAsCompletedWrite reports whether completing this event should
// increment the scheduler's write counter: not a NOOP, marked as part of
// the experiment workload, and not a TRIM.
func (e *Event) CountsAsCompletedWrite() bool {
	return !e.Noop && e.IsExperimentIO && e.EventType != TRIM
}
