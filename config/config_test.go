package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDerivedSizes(t *testing.T) {
	c := Default()
	if got, want := c.TotalPages(), 4*2*2*2*64; got != want {
		t.Errorf("TotalPages() = %d, want %d", got, want)
	}
	if got, want := c.AddressPerPage(), 4096/4; got != want {
		t.Errorf("AddressPerPage() = %d, want %d", got, want)
	}
	if got, want := c.TotalCMTEntries(), c.CacheDFTLLimit*c.AddressPerPage(); got != want {
		t.Errorf("TotalCMTEntries() = %d, want %d", got, want)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ssd.toml")
	body := "block_size = 8\nos_lock = false\ncache_dftl_limit = 4\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BlockSize != 8 {
		t.Errorf("BlockSize = %d, want 8", c.BlockSize)
	}
	if c.OSLock {
		t.Errorf("OSLock = true, want false")
	}
	if c.CacheDFTLLimit != 4 {
		t.Errorf("CacheDFTLLimit = %d, want 4", c.CacheDFTLLimit)
	}
	// Untouched fields keep their default.
	if c.SSDSize != Default().SSDSize {
		t.Errorf("SSDSize = %d, want default %d", c.SSDSize, Default().SSDSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("Load of missing file: want error, got nil")
	}
}
