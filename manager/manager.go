/*
 * ssdcore - Reference free-block allocator.
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

// Package manager is a minimal stand-in for the real block allocator,
// which spec.md explicitly puts out of scope. It hands out fresh,
// never-before-issued blocks on demand so the FTL's per-block append-only
// allocators have a real GetFreeBlock to call; it does no wear leveling,
// erase-count tracking, or garbage collection.
package manager

import (
	"fmt"

	"github.com/flashsim/ssdcore/address"
	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/ftl"
)

// Manager hands out fresh blocks from a flat block space shared by both
// pools; real wear-aware placement would track free/erased/valid counts
// per block, which is out of this core's scope.
type Manager struct {
	cfg        *config.Config
	blocksUsed int
	totalBlocks int
}

// New builds a Manager over cfg's geometry.
func New(cfg *config.Config) *Manager {
	totalPages := cfg.TotalPages()
	return &Manager{
		cfg:         cfg,
		totalBlocks: totalPages / cfg.BlockSize,
	}
}

// GetFreeBlock returns the base address of a fresh, erased block from
// pool. It panics once the device's block space is exhausted: this
// stand-in allocator has no garbage collector to reclaim blocks with,
// and real exhaustion handling is out of scope.
func (m *Manager) GetFreeBlock(pool ftl.Pool) address.Address {
	if m.blocksUsed >= m.totalBlocks {
		panic(fmt.Sprintf("manager: out of free blocks for pool %s (%d blocks used)", pool, m.blocksUsed))
	}
	blockIndex := m.blocksUsed
	m.blocksUsed++
	return address.FromLinear(blockIndex*m.cfg.BlockSize, m.cfg)
}

// BlocksUsed reports how many blocks have been issued so far, for tests
// that want to assert on allocator progress without reaching exhaustion.
func (m *Manager) BlocksUsed() int {
	return m.blocksUsed
}
