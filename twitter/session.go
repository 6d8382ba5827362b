package twitter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-rod/rod"
	"github.com/sirupsen/logrus"
)

const (
	navigateTimeout  = 60 * time.Second
	navigateRetries  = 3
	pageReadyTimeout = 20 * time.Second
)

// FollowingURL 账号的"正在关注"列表页
func FollowingURL(handle string) string {
	return fmt.Sprintf("%s/%s/following", BaseURL, strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// OpenFollowing 打开关注列表并等待主栏渲染，导航失败按指数退避重试
func OpenFollowing(ctx context.Context, page *rod.Page, handle string) error {
	if strings.TrimPrefix(strings.TrimSpace(handle), "@") == "" {
		return fmt.Errorf("handle is required")
	}
	url := FollowingURL(handle)

	operation := func() error {
		navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
		defer cancel()

		pp := page.Context(navCtx)
		if err := pp.Navigate(url); err != nil {
			return err
		}
		if err := pp.WaitLoad(); err != nil {
			return err
		}
		if _, err := pp.Timeout(pageReadyTimeout).Element(SelectorPrimaryColumn); err != nil {
			return fmt.Errorf("following page not ready: %w", err)
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), navigateRetries), ctx)
	return backoff.RetryNotify(operation, b, func(err error, next time.Duration) {
		logrus.WithField("url", url).Warnf("打开关注列表失败，%.1fs 后重试: %v", next.Seconds(), err)
	})
}

// RunOnPage 在已登录的页面上执行一次完整的取关：
// 确定账号 → 打开关注列表 → 运行 Runner
func RunOnPage(ctx context.Context, page *rod.Page, handle string, opts Options, options ...RunnerOption) (*RunStats, error) {
	if handle == "" {
		resolved, err := NewLogin(page).ResolveHandle(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve current account: %w", err)
		}
		handle = resolved
	}

	log := logrus.WithField("handle", handle)
	log.Infof("打开关注列表: %s", FollowingURL(handle))
	if err := OpenFollowing(ctx, page, handle); err != nil {
		return nil, err
	}

	options = append([]RunnerOption{WithLogger(log)}, options...)
	return NewRunner(NewRodDocument(page), opts, options...).Run(ctx)
}
