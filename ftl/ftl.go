/*
 * ssdcore - Demand-based Flash Translation Layer (DFTL).
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

// Package ftl implements the Demand-based Flash Translation Layer
// described in "DFTL: A Flash Translation Layer Employing Demand-based
// Selective Caching of Page-level Address Mappings". It maps logical
// pages (dlpn) to physical pages (dppn) through a bounded in-RAM Cached
// Mapping Table (CMT) over a dense on-device Global Mapping Table (GMT),
// fetching and evicting translation entries on demand.
package ftl

import (
	"github.com/flashsim/ssdcore/address"
	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/event"
)

// Status is the outcome of a read or write: SUCCESS or FAILURE, matching
// the source's enum status so there is exactly one error path, the
// controller's submission failure.
type Status int

const (
	SUCCESS Status = iota
	FAILURE
)

// Pool names which block pool the allocator should draw from: DATA
// blocks hold user pages, LOG blocks hold translation pages.
type Pool int

const (
	DATA Pool = iota
	LOG
)

func (p Pool) String() string {
	if p == LOG {
		return "LOG"
	}
	return "DATA"
}

// Controller is the capability the FTL needs from the bus/controller
// submission path: hand the (possibly chained) event down and report
// whether it was accepted. The controller's own timing model is out of
// scope here; it only ever returns SUCCESS or FAILURE.
type Controller interface {
	Issue(e *event.Event) Status
}

// BlockManager is the capability the FTL needs from the block allocator:
// a fresh, erased block from the requested pool. Wear leveling and
// garbage collection live behind this interface and are out of scope.
type BlockManager interface {
	GetFreeBlock(pool Pool) address.Address
}

// Stats are the counters named in the spec's external interface:
// incremented, never read by the core itself.
type Stats struct {
	NumCacheHits   int
	NumCacheFaults int
	NumFTLRead     int
	NumFTLWrite    int
	NumMemoryRead  int
}

// MPage is one translation entry: logical page, its physical page, and
// the timestamps used both for dirty-tracking and victim selection.
// Sentinel -1 means unmapped. An entry is dirty iff CreateTS != ModifiedTS
// (it has been written to again since the mapping was created).
type MPage struct {
	VPN        int64
	PPN        int64
	CreateTS   float64
	ModifiedTS float64
}

func newMPage() MPage {
	return MPage{VPN: -1, PPN: -1, CreateTS: -1, ModifiedTS: -1}
}

func (m MPage) dirty() bool {
	return m.CreateTS != m.ModifiedTS
}

// FTL is the DFTL translation engine. Exactly one slot in transMap
// exists per logical page in the device; cmt tracks which of those slots
// are currently resident in RAM.
type FTL struct {
	cfg        *config.Config
	controller Controller
	blocks     BlockManager

	Stats Stats

	transMap []MPage
	cmt      map[int64]struct{}

	totalCMTEntries int

	currentDataPage       int64
	currentTranslationPage int64
}

// New builds a DFTL over cfg's geometry, issuing events through
// controller and drawing blocks from blocks.
func New(cfg *config.Config, controller Controller, blocks BlockManager) *FTL {
	total := cfg.TotalPages()
	transMap := make([]MPage, total)
	for i := range transMap {
		transMap[i] = newMPage()
	}
	return &FTL{
		cfg:                    cfg,
		controller:             controller,
		blocks:                 blocks,
		transMap:               transMap,
		cmt:                    make(map[int64]struct{}),
		totalCMTEntries:        cfg.TotalCMTEntries(),
		currentDataPage:        -1,
		currentTranslationPage: -1,
	}
}

// CMTSize reports how many translation entries are currently cached, for
// tests asserting the |cmt| <= totalCMTentries invariant.
func (f *FTL) CMTSize() int {
	return len(f.cmt)
}

// TransMapEntry exposes a read-only copy of trans_map[dlpn], for tests
// and placement heuristics that need to inspect the mapping table.
func (f *FTL) TransMapEntry(dlpn int64) MPage {
	return f.transMap[dlpn]
}

// lookupCMT implements the CMT-hit path: record the hit, charge
// RAM_READ_DELAY, and for a write stamp ModifiedTS and ask the media
// layer to invalidate the page this write replaces.
func (f *FTL) lookupCMT(dlpn int64, e *event.Event, isWrite bool) bool {
	if _, ok := f.cmt[dlpn]; !ok {
		return false
	}
	f.Stats.NumCacheHits++
	f.Stats.NumMemoryRead++
	e.IncrTimeTaken(f.cfg.RAMReadDelay)

	if isWrite {
		f.transMap[dlpn].ModifiedTS = e.StartTime
		kill := address.FromLinear(int(f.transMap[dlpn].PPN), f.cfg)
		kill.Valid = address.Page
		e.ReplaceAddress = &kill
	}
	return true
}

// consultGTD models the mandatory on-device translation fetch a CMT miss
// incurs: it initializes the GTD slot if this is the page's first
// reference, then chains a NOOP READ sub-event onto e so the scheduler
// can see the extra media access. The sub-event is addressed at dlpn's
// current PPN in transMap (-1 if unmapped); the FTL keeps no separate
// record of where translation pages live on flash.
func (f *FTL) consultGTD(dlpn int64, e *event.Event) {
	if f.transMap[dlpn].PPN == -1 {
		f.transMap[dlpn].VPN = dlpn
	}

	readEvent := event.New(event.READ, e.LogicalAddress, e.StartTime, 0)
	readAddr := address.FromLinear(int(f.transMap[dlpn].PPN), f.cfg)
	readAddr.Valid = address.Page
	readEvent.PhysicalAddress = readAddr
	readEvent.Noop = true

	e.AppendNext(readEvent)

	f.Stats.NumFTLRead++
}

// selectVictim picks the entry to evict when the CMT is full: the
// canonical DFTL policy, least-recently-used (smallest ModifiedTS). The
// source instead scans for the *largest* ModifiedTS; spec.md calls that
// out as an anomaly to decide rather than copy, and LRU is the decision
// recorded in DESIGN.md.
func (f *FTL) selectVictim() MPage {
	var victim MPage
	first := true
	for dlpn := range f.cmt {
		candidate := f.transMap[dlpn]
		if first || candidate.ModifiedTS < victim.ModifiedTS {
			victim = candidate
			first = false
		}
	}
	return victim
}

func (f *FTL) resetEntry(vpn int64) {
	e := f.transMap[vpn]
	e.CreateTS = -1
	e.ModifiedTS = -1
	e.PPN = -1
	f.transMap[vpn] = e
}

// resolveMapping is the common prologue of Read and Write: resolve
// dlpn's physical page, fetching and evicting translation entries as
// needed.
func (f *FTL) resolveMapping(e *event.Event, isWrite bool) {
	dlpn := int64(e.LogicalAddress)

	if f.lookupCMT(dlpn, e, isWrite) {
		return
	}

	f.Stats.NumCacheFaults++
	f.consultGTD(dlpn, e)

	if isWrite {
		f.transMap[dlpn].CreateTS = e.StartTime
		f.transMap[dlpn].ModifiedTS = e.StartTime
	}

	if len(f.cmt) == f.totalCMTEntries {
		victim := f.selectVictim()
		if victim.dirty() {
			kill := address.FromLinear(int(victim.PPN), f.cfg)
			kill.Valid = address.Page
			e.ReplaceAddress = &kill
		}
		f.resetEntry(victim.VPN)
		delete(f.cmt, victim.VPN)
	}

	f.cmt[dlpn] = struct{}{}
}

// Read resolves dlpn's mapping, issues the event against its physical
// page, and folds any chained translation fetch into one completion.
func (f *FTL) Read(e *event.Event) Status {
	dlpn := int64(e.LogicalAddress)

	f.resolveMapping(e, false)

	addr := address.FromLinear(int(f.transMap[dlpn].PPN), f.cfg)
	addr.Valid = address.Page
	e.PhysicalAddress = addr

	f.Stats.NumFTLRead++

	if f.controller.Issue(e) == FAILURE {
		return FAILURE
	}

	e.Consolidate()
	return SUCCESS
}

// Write resolves dlpn's mapping, allocates a fresh data page for it
// (flash is append-only: a write never overwrites its old page in
// place), issues the event, and folds any chained translation fetch.
func (f *FTL) Write(e *event.Event) Status {
	dlpn := int64(e.LogicalAddress)

	f.resolveMapping(e, true)

	ppn := f.getFreeDataPage()
	f.transMap[dlpn].PPN = ppn

	addr := address.FromLinear(int(ppn), f.cfg)
	addr.Valid = address.Page
	e.PhysicalAddress = addr

	f.Stats.NumFTLWrite++

	if f.controller.Issue(e) == FAILURE {
		return FAILURE
	}

	e.Consolidate()
	return SUCCESS
}

// getFreeDataPage implements per-block append-only allocation for user
// data: advance within the currently open block, or request a fresh one
// from the allocator once it fills.
func (f *FTL) getFreeDataPage() int64 {
	if f.currentDataPage == -1 || int(f.currentDataPage)%f.cfg.BlockSize == f.cfg.BlockSize-1 {
		base := f.blocks.GetFreeBlock(DATA)
		f.currentDataPage = int64(base.Linear(f.cfg))
	} else {
		f.currentDataPage++
	}
	return f.currentDataPage
}

// getFreeTranslationPage is getFreeDataPage's twin for translation
// (log) pages.
func (f *FTL) getFreeTranslationPage() int64 {
	if f.currentTranslationPage == -1 || int(f.currentTranslationPage)%f.cfg.BlockSize == f.cfg.BlockSize-1 {
		base := f.blocks.GetFreeBlock(LOG)
		f.currentTranslationPage = int64(base.Linear(f.cfg))
	} else {
		f.currentTranslationPage++
	}
	return f.currentTranslationPage
}
