package browser

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/headless_browser"
)

// Manager 浏览器实例管理器，确保同一时间只有一个操作在使用浏览器。
// 同一个账号的取关必须严格串行，HTTP/MCP 的并发请求在这里排队。
type Manager struct {
	mu         sync.Mutex
	slot       chan struct{}
	browser    *headless_browser.Browser
	headless   bool
	binPath    string
	cookiePath string
}

var (
	globalManager     *Manager
	globalManagerOnce sync.Once
)

// NewManager 创建独立的浏览器管理器
func NewManager() *Manager {
	return &Manager{slot: make(chan struct{}, 1)}
}

// GetGlobalManager 获取全局浏览器管理器（单例）
func GetGlobalManager() *Manager {
	globalManagerOnce.Do(func() {
		globalManager = NewManager()
	})
	return globalManager
}

// SetConfig 设置浏览器配置，下次创建实例时生效
func (m *Manager) SetConfig(headless bool, binPath, cookiePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headless = headless
	m.binPath = binPath
	m.cookiePath = cookiePath
}

// CookiePath 返回当前配置的 cookies 路径，为空表示使用默认路径
func (m *Manager) CookiePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookiePath
}

// acquire 占用浏览器，ctx 结束前拿不到则返回 ctx.Err()
func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.slot <- struct{}{}:
		return nil
	default:
	}

	logrus.Info("⏳ 浏览器正在使用中，等待释放...")
	select {
	case m.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireBrowser 获取浏览器实例，阻塞直到浏览器可用或 ctx 结束。
// 成功时必须调用返回的 release 函数
func (m *Manager) AcquireBrowser(ctx context.Context) (*headless_browser.Browser, func(), error) {
	if err := m.acquire(ctx); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if m.browser == nil {
		logrus.Info("创建新的浏览器实例...")
		m.browser = NewBrowser(m.headless, WithBinPath(m.binPath), WithCookiesPath(m.cookiePath))
	}
	b := m.browser
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-m.slot
			logrus.Debug("浏览器实例已释放")
		})
	}
	return b, release, nil
}

// CloseBrowser 关闭并清理浏览器实例
func (m *Manager) CloseBrowser() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		logrus.Info("关闭浏览器实例...")
		m.browser.Close()
		m.browser = nil
	}
}

// NewPageWithRelease 获取一个已配置的新页面；release 先关闭页面再释放浏览器
func (m *Manager) NewPageWithRelease(ctx context.Context) (*rod.Page, func(), error) {
	b, releaseBrowser, err := m.AcquireBrowser(ctx)
	if err != nil {
		return nil, nil, err
	}

	page := b.NewPage()
	ConfigurePage(page)

	release := func() {
		if page != nil {
			_ = page.Close()
		}
		releaseBrowser()
	}

	return page, release, nil
}
