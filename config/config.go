/*
 * ssdcore - Device geometry, timing, and policy configuration.
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

// Package config holds the geometry, timing, and policy constants that the
// scheduler, FTL, and hotness measurer are built against. A Config is
// immutable once loaded and is passed by reference into every constructor
// rather than read from package globals.
package config

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
)

// Config is the full set of constants named in the simulator core's
// external interface. Geometry fields describe the physical page
// hierarchy; timing fields are in the same time unit as Event.StartTime;
// policy fields gate scheduler behavior.
type Config struct {
	// Geometry.
	SSDSize    int `toml:"ssd_size"`
	PackageSize int `toml:"package_size"`
	DieSize    int `toml:"die_size"`
	PlaneSize  int `toml:"plane_size"`
	BlockSize  int `toml:"block_size"`
	PageSize   int `toml:"page_size"` // bytes

	// Timing.
	BusCtrlDelay   float64 `toml:"bus_ctrl_delay"`
	BusDataDelay   float64 `toml:"bus_data_delay"`
	PageReadDelay  float64 `toml:"page_read_delay"`
	PageWriteDelay float64 `toml:"page_write_delay"`
	RAMReadDelay   float64 `toml:"ram_read_delay"`

	// Policy.
	CacheDFTLLimit int  `toml:"cache_dftl_limit"` // pages' worth of translation entries
	MaxSSDQueueSize int `toml:"max_ssd_queue_size"`
	OSLock          bool `toml:"os_lock"`

	// Scheduler bounds that the source hardwired; kept overridable so
	// tests can shrink them without waiting on real limits.
	MaxOutstandingIOsPerThread int `toml:"max_outstanding_ios_per_thread"`
	IdleLimit                  int `toml:"idle_limit"`

	// AddressSize is the bit width of a physical page number, used to
	// derive how many translation entries fit in one page.
	AddressSize int `toml:"address_size"`
}

// Default returns the constants used throughout spec scenarios: a small
// four-package, two-die, two-plane, two-block, 64-page geometry with
// round timing numbers, matching the scale the original DFTL paper and
// its EagleTree implementation were evaluated against.
func Default() *Config {
	return &Config{
		SSDSize:     4,
		PackageSize: 2,
		DieSize:     2,
		PlaneSize:   2,
		BlockSize:   64,
		PageSize:    4096,

		BusCtrlDelay:   1,
		BusDataDelay:   10,
		PageReadDelay:  20,
		PageWriteDelay: 200,
		RAMReadDelay:   1,

		CacheDFTLLimit:  1,
		MaxSSDQueueSize: 64,
		OSLock:          true,

		MaxOutstandingIOsPerThread: 16,
		IdleLimit:                  5_000_000,

		AddressSize: 32,
	}
}

// Load reads a Config from a TOML file, starting from Default and
// overwriting only the fields present in the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}

// TotalPages is the number of logical/physical pages addressable by this
// geometry: SSDSize * PackageSize * DieSize * PlaneSize * BlockSize.
func (c *Config) TotalPages() int {
	return c.SSDSize * c.PackageSize * c.DieSize * c.PlaneSize * c.BlockSize
}

// AddressPerPage is how many translation entries fit into one physical
// page, floor(PageSize / ceil(AddressSize/8)).
func (c *Config) AddressPerPage() int {
	bytesPerAddress := int(math.Ceil(float64(c.AddressSize) / 8.0))
	return c.PageSize / bytesPerAddress
}

// TotalCMTEntries is the bound on the cached mapping table:
// CacheDFTLLimit * AddressPerPage.
func (c *Config) TotalCMTEntries() int {
	return c.CacheDFTLLimit * c.AddressPerPage()
}
