package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerConfig(t *testing.T) {
	m := NewManager()
	assert.Empty(t, m.CookiePath())

	m.SetConfig(false, "/usr/bin/chromium", "/tmp/x/cookies.json")
	assert.Equal(t, "/tmp/x/cookies.json", m.CookiePath())
	assert.False(t, m.headless)
	assert.Equal(t, "/usr/bin/chromium", m.binPath)
}

func TestGetGlobalManagerSingleton(t *testing.T) {
	assert.Same(t, GetGlobalManager(), GetGlobalManager())
}

func TestCloseBrowserWithoutInstance(t *testing.T) {
	m := NewManager()
	assert.NotPanics(t, m.CloseBrowser)
}

func TestBrowserOptions(t *testing.T) {
	cfg := &browserConfig{}
	WithBinPath("/opt/chrome")(cfg)
	WithCookiesPath("/tmp/c.json")(cfg)
	assert.Equal(t, "/opt/chrome", cfg.binPath)
	assert.Equal(t, "/tmp/c.json", cfg.cookiePath)
}

func TestAcquireHonoursContextWhileBusy(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	b, release, err := m.AcquireBrowser(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, b)
	assert.Nil(t, release)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, m.browser, "no browser is launched while waiting")

	// 释放后可以再次占用
	<-m.slot
	require.NoError(t, m.acquire(context.Background()))
}

func TestNewPageWithReleaseCanceled(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page, release, err := m.NewPageWithRelease(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, page)
	assert.Nil(t, release)
}
