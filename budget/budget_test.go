package budget

import (
	"sync"
	"testing"

	"github.com/meysamhadeli/codelve/config"
	"github.com/stretchr/testify/assert"
)

func TestNew_ReadsStore(t *testing.T) {
	cfg := config.New()
	cfg.Set(config.KeyMaxContextSize, 100)
	cfg.Set(config.KeyMaxHistory, 3)
	cfg.Set(config.KeyMaxIndexBytes, int64(2048))

	b := New(cfg)

	assert.Equal(t, 100, b.MaxContextSize)
	assert.Equal(t, 400, b.ContextCharLimit())
	assert.Equal(t, 3, b.MaxHistoryEntries)
	assert.Equal(t, int64(2048), b.MaxIndexBytes)
	assert.Equal(t, 10000, b.MaxFileCount)
}

func TestDefault(t *testing.T) {
	b := Default()
	assert.Equal(t, int64(10*1024*1024), b.MaxFileSize)
	assert.Equal(t, 8192*4, b.ContextCharLimit())
	assert.Zero(t, b.MaxIndexBytes)
}

func TestReserveAndRelease(t *testing.T) {
	b := Default()
	b.MaxIndexBytes = 100

	assert.True(t, b.Reserve(60))
	assert.False(t, b.Reserve(50))
	assert.Equal(t, int64(60), b.Used())

	b.Release(60)
	assert.Zero(t, b.Used())

	b.Release(10)
	assert.Zero(t, b.Used(), "usage never goes negative")
}

func TestReserve_UnlimitedConcurrent(t *testing.T) {
	b := Default()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Reserve(10)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(500), b.Used())
}

func TestReport(t *testing.T) {
	b := Default()
	b.Reserve(2048)
	assert.Equal(t, "Index memory: 2.0 KiB of unlimited, context window: 8192 tokens (32768 characters)", b.Report())

	b.MaxIndexBytes = 512
	b.Release(2048)
	b.Reserve(100)
	assert.Equal(t, "Index memory: 100 B of 512 B, context window: 8192 tokens (32768 characters)", b.Report())
}

func TestInstall_RescanDoesNotCountInstalledIndex(t *testing.T) {
	b := Default()
	b.MaxIndexBytes = 150

	assert.True(t, b.Reserve(60))
	assert.True(t, b.Reserve(60))
	b.Install(120)
	assert.Equal(t, int64(120), b.Installed())

	assert.True(t, b.Reserve(60), "a rescan gets the full limit")
	assert.True(t, b.Reserve(60))
	assert.False(t, b.Reserve(60), "the rescan itself is still capped")
	assert.Equal(t, int64(240), b.Used())

	b.Install(120)
	assert.Equal(t, int64(120), b.Used(), "the replaced index is released")

	b.Install(0)
	assert.Zero(t, b.Used())
	assert.Zero(t, b.Installed())
}
