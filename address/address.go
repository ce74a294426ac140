/*
 * ssdcore - Physical page address.
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

// Package address is the hierarchical physical coordinate used throughout
// the simulator: package, die, plane, block, page. It also knows how to
// project that coordinate down to (or up from) a single linear page
// index, given a device Config.
package address

import "github.com/flashsim/ssdcore/config"

// Level names which field of an Address was last set meaningfully; two
// Addresses built at different levels may still compare unequal even
// though their Linear() projects to the same page, since the source
// keeps this as a tag rather than normalizing it away.
type Level int

const (
	Package Level = iota
	Die
	Plane
	Block
	Page
)

// Address is a package/die/plane/block/page coordinate.
type Address struct {
	PackageNum int
	DieNum     int
	PlaneNum   int
	BlockNum   int
	PageNum    int
	Valid      Level
}

// New builds an Address with all five coordinates explicit.
func New(pkg, die, plane, block, page int, valid Level) Address {
	return Address{PackageNum: pkg, DieNum: die, PlaneNum: plane, BlockNum: block, PageNum: page, Valid: valid}
}

// FromLinear decomposes a linear page index into its hierarchical
// coordinate, the inverse of Linear. cfg supplies the mixed-radix sizes.
func FromLinear(linear int, cfg *config.Config) Address {
	page := linear % cfg.BlockSize
	linear /= cfg.BlockSize
	block := linear % cfg.PlaneSize
	linear /= cfg.PlaneSize
	plane := linear % cfg.DieSize
	linear /= cfg.DieSize
	die := linear % cfg.PackageSize
	linear /= cfg.PackageSize
	pkg := linear % cfg.SSDSize
	return Address{PackageNum: pkg, DieNum: die, PlaneNum: plane, BlockNum: block, PageNum: page, Valid: Page}
}

// Linear projects the hierarchical coordinate to a single page index:
// the fixed mixed-radix function of the geometry constants named in the
// spec (SSD_SIZE, PACKAGE_SIZE, DIE_SIZE, PLANE_SIZE, BLOCK_SIZE).
func (a Address) Linear(cfg *config.Config) int {
	linear := a.PackageNum
	linear = linear*cfg.PackageSize + a.DieNum
	linear = linear*cfg.DieSize + a.PlaneNum
	linear = linear*cfg.PlaneSize + a.BlockNum
	linear = linear*cfg.BlockSize + a.PageNum
	return linear
}

// BlockBase returns the linear address of page 0 of this address's block
// -- the base page handed out when the allocator issues a fresh block.
func (a Address) BlockBase(cfg *config.Config) int {
	b := a
	b.PageNum = 0
	b.Valid = Block
	return b.Linear(cfg)
}
