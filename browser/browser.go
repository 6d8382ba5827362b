package browser

import (
	"runtime"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/headless_browser"
	"github.com/xpzouying/x-unfollow/cookies"
)

const (
	// 固定视口，保证"滚动半屏"每次的距离一致
	defaultViewportWidth  = 1280
	defaultViewportHeight = 900

	windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type browserConfig struct {
	binPath    string
	cookiePath string
}

type Option func(*browserConfig)

func WithBinPath(binPath string) Option {
	return func(c *browserConfig) {
		c.binPath = binPath
	}
}

// WithCookiesPath 指定新浏览器实例启动时要使用的 cookies 文件路径。
func WithCookiesPath(path string) Option {
	return func(c *browserConfig) {
		c.cookiePath = path
	}
}

func NewBrowser(headless bool, options ...Option) *headless_browser.Browser {
	cfg := &browserConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	opts := []headless_browser.Option{
		headless_browser.WithHeadless(headless),
	}
	if cfg.binPath != "" {
		opts = append(opts, headless_browser.WithChromeBinPath(cfg.binPath))
	}

	cookiePath := cfg.cookiePath
	if cookiePath == "" {
		cookiePath = cookies.GetCookiesFilePath()
	}

	if data, err := cookies.NewLoadCookie(cookiePath).LoadCookies(); err == nil {
		opts = append(opts, headless_browser.WithCookies(string(data)))
		logrus.WithField("cookies_path", cookiePath).Debug("loaded cookies from file successfully")
	} else {
		// 首次运行没有 cookies 是正常情况，需要手动登录一次
		logrus.WithField("cookies_path", cookiePath).Warnf("failed to load cookies: %v", err)
	}

	return headless_browser.New(opts...)
}

// ConfigurePage 配置页面：固定视口大小，并在 Windows 下修正 User-Agent
func ConfigurePage(page *rod.Page) {
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             defaultViewportWidth,
		Height:            defaultViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		logrus.Warnf("failed to set viewport: %v", err)
	}

	// headless_browser 内部的 stealth 默认伪装成 Mac Chrome，
	// Windows 下 UA 与 navigator.platform 不一致容易被识别
	if runtime.GOOS != "windows" {
		return
	}

	// 页面已关闭时会失败，不影响主流程
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: windowsUA,
		Platform:  "Windows",
	})

	_, err = page.EvalOnNewDocument(`
		Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
		Object.defineProperty(navigator, 'userAgent', { get: () => '` + windowsUA + `' });
	`)
	if err != nil {
		logrus.Warnf("failed to set user agent script: %v", err)
	}

	logrus.Info("已修正 Windows 环境下的 User-Agent 设置")
}
