package twitter

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	BaseURL = "https://x.com"
	HomeURL = BaseURL + "/home"
)

// loginSettleDelay 首页加载后等侧边栏渲染出来
const loginSettleDelay = 2 * time.Second

// ErrNotLoggedIn 当前页面没有登录态
var ErrNotLoggedIn = errors.New("not logged in")

type LoginAction struct {
	page    *rod.Page
	sleeper Sleeper
}

func NewLogin(page *rod.Page) *LoginAction {
	return &LoginAction{page: page, sleeper: timerSleeper{}}
}

// CheckLoginStatus 打开首页，根据侧边栏的发帖按钮判断是否已登录
func (a *LoginAction) CheckLoginStatus(ctx context.Context) (bool, error) {
	pp := a.page.Context(ctx)

	if err := pp.Navigate(HomeURL); err != nil {
		return false, errors.Wrap(err, "failed to open home page")
	}
	if err := pp.WaitLoad(); err != nil {
		return false, errors.Wrap(err, "failed to wait home page load")
	}
	if err := a.settle(ctx); err != nil {
		return false, err
	}

	exists, _, err := pp.Has(SelectorLoggedIn)
	if err != nil {
		return false, errors.Wrap(err, "check login status failed")
	}
	return exists, nil
}

func (a *LoginAction) settle(ctx context.Context) error {
	return a.sleeper.Sleep(ctx, loginSettleDelay)
}

// WaitForLogin 等待用户在浏览器窗口中手动登录，直到登录成功或 ctx 结束
func (a *LoginAction) WaitForLogin(ctx context.Context) bool {
	pp := a.page.Context(ctx)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			exists, _, err := pp.Has(SelectorLoggedIn)
			if err == nil && exists {
				return true
			}
		}
	}
}

// ResolveHandle 从侧边栏的个人主页链接中解析当前登录账号的 handle
func (a *LoginAction) ResolveHandle(ctx context.Context) (string, error) {
	has, el, err := a.page.Context(ctx).Has(SelectorProfileLink)
	if err != nil {
		return "", errors.Wrap(err, "query profile link failed")
	}
	if !has {
		return "", ErrNotLoggedIn
	}

	href, err := el.Attribute("href")
	if err != nil {
		return "", errors.Wrap(err, "read profile link failed")
	}
	if href == nil {
		return "", errors.New("profile link has no href")
	}

	handle := handleFromHref(*href)
	if handle == "" {
		return "", errors.Errorf("unexpected profile link: %s", *href)
	}
	logrus.WithField("handle", handle).Debug("resolved current account")
	return handle, nil
}

// handleFromHref 把 "/jack"、"https://x.com/jack?s=1" 解析为 "jack"
func handleFromHref(href string) string {
	href = strings.TrimPrefix(href, BaseURL)
	href = strings.TrimPrefix(href, "https://twitter.com")
	if idx := strings.IndexAny(href, "?#"); idx >= 0 {
		href = href[:idx]
	}
	href = strings.Trim(href, "/")
	if href == "" || strings.Contains(href, "/") {
		return ""
	}
	return href
}
