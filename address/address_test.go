package address

import (
	"testing"

	"github.com/flashsim/ssdcore/config"
)

func TestLinearRoundTrip(t *testing.T) {
	cfg := config.Default()
	cases := []Address{
		New(0, 0, 0, 0, 0, Page),
		New(1, 1, 1, 1, 1, Page),
		New(3, 1, 1, 1, 63, Page),
	}
	for _, a := range cases {
		linear := a.Linear(cfg)
		back := FromLinear(linear, cfg)
		if back.PackageNum != a.PackageNum || back.DieNum != a.DieNum ||
			back.PlaneNum != a.PlaneNum || back.BlockNum != a.BlockNum || back.PageNum != a.PageNum {
			t.Errorf("round trip of %+v via linear %d gave %+v", a, linear, back)
		}
	}
}

func TestLinearIsMixedRadix(t *testing.T) {
	cfg := config.Default()
	first := New(0, 0, 0, 0, 0, Page).Linear(cfg)
	second := New(0, 0, 0, 0, 1, Page).Linear(cfg)
	if second != first+1 {
		t.Errorf("adjacent pages should be adjacent linear addresses, got %d and %d", first, second)
	}
	nextBlock := New(0, 0, 0, 1, 0, Page).Linear(cfg)
	if nextBlock != first+cfg.BlockSize {
		t.Errorf("next block should jump by BlockSize, got %d want %d", nextBlock, first+cfg.BlockSize)
	}
}

func TestBlockBase(t *testing.T) {
	cfg := config.Default()
	a := New(1, 0, 1, 5, 37, Page)
	base := a.BlockBase(cfg)
	want := New(1, 0, 1, 5, 0, Block).Linear(cfg)
	if base != want {
		t.Errorf("BlockBase() = %d, want %d", base, want)
	}
}
