/*
 * ssdcore - Page hotness measurement.
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

// Package hotness classifies logical pages as write-hot/cold and
// read-hot/cold from an exponentially weighted moving average of recent
// access counts, rolled over on fixed-length time intervals, and tracks
// which die currently holds the fewest write-cold pages (of either read
// temperature) so a placement policy can steer cold data there.
package hotness

import (
	"fmt"
	"math"

	"github.com/flashsim/ssdcore/address"
	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
)

// intervalLength is the number of time units a measurement window spans
// before the moving averages roll over.
const intervalLength = 1000

// weight is the EWMA decay factor applied to the previous interval's
// average on each rollover.
const weight = 0.5

// WriteHotness classifies a page's recent write frequency relative to
// the device-wide average.
type WriteHotness int

const (
	WriteCold WriteHotness = iota
	WriteHot
)

// ReadHotness classifies a page's recent read frequency relative to the
// device-wide average.
type ReadHotness int

const (
	ReadCold ReadHotness = iota
	ReadHot
)

// InvariantError is panicked when a caller breaches one of Measurer's
// preconditions: an unknown event type reaching RegisterEvent, or a
// rollover computing a negative number of elapsed intervals. Both are
// fatal assertions, not recoverable conditions.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("hotness: invariant breach: %s", e.Reason)
}

// Measurer tracks per-page write/read activity and rolls it into an
// EWMA once per interval, along with per-die counts of write-cold pages
// split by read temperature.
type Measurer struct {
	cfg *config.Config

	writeCurrentCount map[int64]int
	writeMovingAverage []float64
	readCurrentCount  map[int64]int
	readMovingAverage []float64

	averageWriteHotness float64
	averageReadHotness  float64

	currentInterval int64

	numWCRHPagesPerDie [][]int
	numWCRCPagesPerDie [][]int
	currentReadsPerDie [][]int
	averageReadsPerDie [][]float64
}

// New builds a Measurer sized to cfg's geometry, with every page
// starting at zero hotness.
func New(cfg *config.Config) *Measurer {
	total := cfg.TotalPages()
	m := &Measurer{
		cfg:                cfg,
		writeCurrentCount:  make(map[int64]int),
		writeMovingAverage: make([]float64, total),
		readCurrentCount:   make(map[int64]int),
		readMovingAverage:  make([]float64, total),
	}
	m.numWCRHPagesPerDie = make2D(cfg.SSDSize, cfg.PackageSize)
	m.numWCRCPagesPerDie = make2D(cfg.SSDSize, cfg.PackageSize)
	m.currentReadsPerDie = make2D(cfg.SSDSize, cfg.PackageSize)
	m.averageReadsPerDie = make2DFloat(cfg.SSDSize, cfg.PackageSize)
	return m
}

func make2D(rows, cols int) [][]int {
	g := make([][]int, rows)
	for i := range g {
		g[i] = make([]int, cols)
	}
	return g
}

func make2DFloat(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}

// GetWriteHotness reports whether pageAddress's write moving average is
// at or above the device-wide average as of the last interval rollover.
func (m *Measurer) GetWriteHotness(pageAddress int64) WriteHotness {
	if m.writeMovingAverage[pageAddress] >= m.averageWriteHotness {
		return WriteHot
	}
	return WriteCold
}

// GetReadHotness reports whether pageAddress's read moving average is
// at or above the device-wide average as of the last interval rollover.
func (m *Measurer) GetReadHotness(pageAddress int64) ReadHotness {
	if m.readMovingAverage[pageAddress] >= m.averageReadHotness {
		return ReadHot
	}
	return ReadCold
}

// GetDieWithLeastWCRH returns the die coordinate with the fewest
// write-cold-read-hot pages as of the last interval rollover.
func (m *Measurer) GetDieWithLeastWCRH() address.Address {
	return m.dieWithLeast(m.numWCRHPagesPerDie)
}

// GetDieWithLeastWCRC returns the die coordinate with the fewest
// write-cold-read-cold pages as of the last interval rollover.
func (m *Measurer) GetDieWithLeastWCRC() address.Address {
	return m.dieWithLeast(m.numWCRCPagesPerDie)
}

// dieWithLeast scans per-die counts for the minimum. The source instead
// tracked whichever die's count most recently exceeded its running
// "min" -- effectively the maximum, not the minimum; spec.md calls this
// out as an anomaly to decide rather than copy, and the comparator below
// is the corrected direction recorded in DESIGN.md.
func (m *Measurer) dieWithLeast(counts [][]int) address.Address {
	var pkg, die int
	min := math.MaxInt
	for i := 0; i < m.cfg.SSDSize; i++ {
		for j := 0; j < m.cfg.PackageSize; j++ {
			if counts[i][j] < min {
				min = counts[i][j]
				pkg = i
				die = j
			}
		}
	}
	return address.New(pkg, die, 0, 0, 0, address.Die)
}

// RegisterEvent records a write or read-command event against its
// target page, rolling moving averages over into a new interval first if
// e's completion time has crossed one. e.EventType must be WRITE or
// ReadCommand; any other type is a precondition violation and panics.
func (m *Measurer) RegisterEvent(e *event.Event) {
	if e.EventType != event.WRITE && e.EventType != event.ReadCommand {
		panic(&InvariantError{Reason: fmt.Sprintf("register_event precondition violated: type %s not in {WRITE, READ_COMMAND}", e.EventType)})
	}

	completion := e.StartTime + e.TimeTaken
	m.checkIfNewInterval(completion)

	linear := int64(e.PhysicalAddress.Linear(m.cfg))
	switch e.EventType {
	case event.WRITE:
		m.writeCurrentCount[linear]++
	case event.ReadCommand:
		m.currentReadsPerDie[e.PhysicalAddress.PackageNum][e.PhysicalAddress.DieNum]++
		m.readCurrentCount[linear]++
	}
}

// checkIfNewInterval rolls every moving average and per-die counter
// forward once per elapsed interval of length intervalLength, then
// advances currentInterval by however many intervals elapsed. The
// source computed how many intervals had elapsed but never advanced
// current_interval, so every later call re-measured from interval zero;
// spec.md names this as a bug to fix rather than reproduce.
func (m *Measurer) checkIfNewInterval(t float64) {
	elapsed := int64((t - float64(m.currentInterval)*intervalLength) / intervalLength)
	if elapsed < 0 {
		panic(&InvariantError{Reason: fmt.Sprintf("negative interval rollover: elapsed=%d at t=%v, currentInterval=%d", elapsed, t, m.currentInterval)})
	}
	if elapsed == 0 {
		return
	}

	p := math.Pow(weight, float64(elapsed-1))

	m.averageWriteHotness = 0
	m.averageReadHotness = 0
	for addr := 0; addr < len(m.writeMovingAverage); addr++ {
		a := int64(addr)

		wCount := m.writeCurrentCount[a]
		m.writeMovingAverage[addr] = m.writeMovingAverage[addr]*weight + float64(wCount)*(1-weight)
		m.writeMovingAverage[addr] *= p
		m.averageWriteHotness += m.writeMovingAverage[addr]
		delete(m.writeCurrentCount, a)

		rCount := m.readCurrentCount[a]
		m.readMovingAverage[addr] = m.readMovingAverage[addr]*weight + float64(rCount)*(1-weight)
		m.readMovingAverage[addr] *= p
		m.averageReadHotness += m.readMovingAverage[addr]
		delete(m.readCurrentCount, a)
	}
	n := float64(len(m.writeMovingAverage))
	if n > 0 {
		m.averageWriteHotness /= n
		m.averageReadHotness /= n
	}

	for i := 0; i < m.cfg.SSDSize; i++ {
		for j := 0; j < m.cfg.PackageSize; j++ {
			m.averageReadsPerDie[i][j] = m.averageReadsPerDie[i][j]*weight + float64(m.currentReadsPerDie[i][j])*(1-weight)
			m.currentReadsPerDie[i][j] = 0
			m.numWCRCPagesPerDie[i][j] = 0
			m.numWCRHPagesPerDie[i][j] = 0
		}
	}

	for addr := 0; addr < len(m.writeMovingAverage); addr++ {
		if m.GetWriteHotness(int64(addr)) != WriteCold {
			continue
		}
		a := address.FromLinear(addr, m.cfg)
		if m.GetReadHotness(int64(addr)) == ReadCold {
			m.numWCRCPagesPerDie[a.PackageNum][a.DieNum]++
		} else {
			m.numWCRHPagesPerDie[a.PackageNum][a.DieNum]++
		}
	}

	m.currentInterval += elapsed
}
