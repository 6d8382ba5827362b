package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/x-unfollow/accounts"
	"github.com/xpzouying/x-unfollow/browser"
	"github.com/xpzouying/x-unfollow/configs"
	"github.com/xpzouying/x-unfollow/cookies"
	"github.com/xpzouying/x-unfollow/twitter"
)

// ErrBrowserBusy 取关任务正在占用浏览器
var ErrBrowserBusy = errors.New("browser is busy with an unfollow run")

// BrowserPool 提供独占的浏览器页面，*browser.Manager 是默认实现
type BrowserPool interface {
	NewPageWithRelease(ctx context.Context) (*rod.Page, func(), error)
	CookiePath() string
	CloseBrowser()
}

var _ BrowserPool = (*browser.Manager)(nil)

// UnfollowService 取关业务服务
type UnfollowService struct {
	manager BrowserPool
	runs    *runRegistry

	// runFunc 在已登录的页面上执行一次取关
	runFunc func(ctx context.Context, page *rod.Page, handle string, opts twitter.Options) (*twitter.RunStats, error)
}

// NewUnfollowService 创建取关服务，所有请求共用 manager 中的浏览器
func NewUnfollowService(manager BrowserPool) *UnfollowService {
	return &UnfollowService{
		manager: manager,
		runs:    newRunRegistry(),
		runFunc: func(ctx context.Context, page *rod.Page, handle string, opts twitter.Options) (*twitter.RunStats, error) {
			return twitter.RunOnPage(ctx, page, handle, opts)
		},
	}
}

// LoginStatusResponse 登录状态响应
type LoginStatusResponse struct {
	IsLoggedIn bool   `json:"is_logged_in"`
	Handle     string `json:"handle,omitempty"`
}

// UnfollowRequest 取关请求，零值字段使用默认配置
type UnfollowRequest struct {
	Handle              string   `json:"handle,omitempty"`
	RetryLimit          int      `json:"retry_limit,omitempty"`
	MinDelaySeconds     float64  `json:"min_delay_seconds,omitempty"`
	MaxDelaySeconds     float64  `json:"max_delay_seconds,omitempty"`
	RowHoverProbability *float64 `json:"row_hover_probability,omitempty"`
}

// Options 把请求转换为 Runner 配置
func (r *UnfollowRequest) Options() (twitter.Options, error) {
	opts := twitter.DefaultOptions()

	if r.RetryLimit < 0 {
		return opts, fmt.Errorf("retry_limit must not be negative")
	}
	if r.RetryLimit > 0 {
		opts.RetryLimit = r.RetryLimit
	}

	if r.MinDelaySeconds < 0 || r.MaxDelaySeconds < 0 {
		return opts, fmt.Errorf("delay must not be negative")
	}
	if r.MinDelaySeconds > 0 || r.MaxDelaySeconds > 0 {
		base := twitter.Seconds(r.MinDelaySeconds, r.MaxDelaySeconds)
		if r.MinDelaySeconds == 0 {
			base.Min = opts.BaseDelay.Min
		}
		if r.MaxDelaySeconds == 0 {
			base.Max = opts.BaseDelay.Max
		}
		if base.Min > base.Max {
			return opts, fmt.Errorf("min_delay_seconds %.1f is greater than max_delay_seconds %.1f", r.MinDelaySeconds, r.MaxDelaySeconds)
		}
		opts.BaseDelay = base
	}

	if p := r.RowHoverProbability; p != nil {
		if *p > 1 {
			return opts, fmt.Errorf("row_hover_probability must be at most 1")
		}
		opts.RowHoverProbability = *p
	}
	return opts, nil
}

// CheckLoginStatus 检查登录状态，已登录时一并返回账号 handle
func (s *UnfollowService) CheckLoginStatus(ctx context.Context) (*LoginStatusResponse, error) {
	page, release, err := s.acquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	login := twitter.NewLogin(page)
	isLoggedIn, err := login.CheckLoginStatus(ctx)
	if err != nil {
		return nil, err
	}

	resp := &LoginStatusResponse{IsLoggedIn: isLoggedIn}
	if !isLoggedIn {
		return resp, nil
	}

	if handle, err := login.ResolveHandle(ctx); err == nil {
		resp.Handle = handle
	} else {
		logrus.WithError(err).Warn("获取账号 handle 失败")
	}
	s.saveCookies(page)
	return resp, nil
}

// StartRun 异步启动一次取关，立即返回任务信息
func (s *UnfollowService) StartRun(req *UnfollowRequest) (*RunInfo, error) {
	opts, err := req.Options()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	info := s.runs.create(req.Handle, cancel)

	logrus.WithFields(logrus.Fields{
		"run_id": info.ID,
		"handle": req.Handle,
	}).Info("创建取关任务")

	go s.execute(ctx, info.ID, req.Handle, opts)
	return &info, nil
}

func (s *UnfollowService) execute(ctx context.Context, id, handle string, opts twitter.Options) {
	log := logrus.WithField("run_id", id)

	page, release, err := s.manager.NewPageWithRelease(ctx)
	if err != nil {
		s.runs.finish(id, statusFor(ctx), nil, err)
		return
	}
	defer release()

	s.runs.update(id, func(r *RunInfo) { r.Status = RunStatusRunning })

	login := twitter.NewLogin(page)
	isLoggedIn, err := login.CheckLoginStatus(ctx)
	if err != nil {
		s.runs.finish(id, statusFor(ctx), nil, err)
		return
	}
	if !isLoggedIn {
		s.runs.finish(id, RunStatusFailed, nil, twitter.ErrNotLoggedIn)
		return
	}

	if handle == "" {
		handle = configs.GetUsername()
	}
	if handle == "" {
		if handle, err = login.ResolveHandle(ctx); err != nil {
			s.runs.finish(id, statusFor(ctx), nil, errors.Wrap(err, "resolve account handle failed"))
			return
		}
	}
	s.runs.update(id, func(r *RunInfo) { r.Handle = handle })

	stats, err := s.runFunc(ctx, page, handle, opts)
	s.saveCookies(page)

	if err != nil {
		log.WithError(err).Warn("取关任务异常结束")
		s.runs.finish(id, statusFor(ctx), stats, err)
		return
	}
	log.WithField("unfollowed", stats.Unfollowed).Info("取关任务完成")
	s.runs.finish(id, RunStatusCompleted, stats, nil)
}

// acquirePage 给短请求使用：有取关任务在跑时直接返回 ErrBrowserBusy，不排队
func (s *UnfollowService) acquirePage(ctx context.Context) (*rod.Page, func(), error) {
	if s.runs.active() {
		return nil, nil, ErrBrowserBusy
	}
	page, release, err := s.manager.NewPageWithRelease(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "acquire browser")
	}
	return page, release, nil
}

func statusFor(ctx context.Context) RunStatus {
	if ctx.Err() != nil {
		return RunStatusCanceled
	}
	return RunStatusFailed
}

func (s *UnfollowService) saveCookies(page *rod.Page) {
	path := s.manager.CookiePath()
	if path == "" {
		path = cookies.GetCookiesFilePath()
	}
	if err := accounts.SavePageCookiesToPath(page, path); err != nil {
		logrus.WithError(err).Warn("保存 cookies 失败")
	}
}

// GetRun 查询任务
func (s *UnfollowService) GetRun(id string) (*RunInfo, error) {
	info, ok := s.runs.get(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	return &info, nil
}

// ListRuns 列出所有任务，最新的在前
func (s *UnfollowService) ListRuns() []RunInfo {
	return s.runs.list()
}

// CancelRun 取消未结束的任务，已完成的部分会保留在统计中
func (s *UnfollowService) CancelRun(id string) error {
	return s.runs.cancel(id)
}

// Shutdown 取消所有进行中的任务
func (s *UnfollowService) Shutdown() {
	s.runs.cancelAll()
}

// ScreenshotResult 页面截图
type ScreenshotResult struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Screenshot 打开 x.com 上的指定路径并截图，path 为空时打开首页
func (s *UnfollowService) Screenshot(ctx context.Context, path string) (*ScreenshotResult, error) {
	url, err := screenshotURL(path)
	if err != nil {
		return nil, err
	}

	page, release, err := s.acquirePage(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	pp := page.Context(ctx)
	if err := pp.Navigate(url); err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", url)
	}
	if err := pp.WaitLoad(); err != nil {
		return nil, errors.Wrapf(err, "failed to wait %s load", url)
	}

	data, err := pp.Screenshot(false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "screenshot failed")
	}

	mime, err := detectImageMIME(data)
	if err != nil {
		return nil, err
	}
	return &ScreenshotResult{MimeType: mime, Data: data}, nil
}

// screenshotURL 只允许截取 x.com 站内页面
func screenshotURL(path string) (string, error) {
	if path == "" {
		return twitter.HomeURL, nil
	}
	if strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return "", fmt.Errorf("path must be relative to %s: %s", twitter.BaseURL, path)
	}
	return twitter.BaseURL + "/" + strings.TrimPrefix(path, "/"), nil
}

func detectImageMIME(data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", errors.New("screenshot is not an image")
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", errors.Wrap(err, "detect screenshot type failed")
	}
	return kind.MIME.Value, nil
}
