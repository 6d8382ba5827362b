package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/x-unfollow/browser"
	"github.com/xpzouying/x-unfollow/configs"
	"github.com/xpzouying/x-unfollow/cookies"
	"github.com/xpzouying/x-unfollow/twitter"
)

// LoginWaitTimeout 未登录时等待手动登录的时间
const LoginWaitTimeout = 60 * time.Second

// InstanceResult 单个账号实例的取关结果
type InstanceResult struct {
	InstanceID string            `json:"instance_id"`
	Handle     string            `json:"handle,omitempty"`
	Stats      *twitter.RunStats `json:"stats,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// InstanceID 第 idx 个实例（从 0 开始）的 ID；单实例沿用默认 cookies 文件
func InstanceID(idx, instances int) string {
	if instances <= 1 {
		return ""
	}
	return fmt.Sprintf("instance%d", idx+1)
}

func cookiePathFor(instanceID string) string {
	if instanceID == "" {
		return cookies.GetCookiesFilePath()
	}
	return cookies.GetInstanceCookiesFilePath(instanceID)
}

// RunParallelUnfollow 每个 cookies 档案（账号）一个独立浏览器并行取关。
// 账号之间互不影响，单个账号内部仍严格串行。handles 与实例按下标对应，缺省时自动识别
func RunParallelUnfollow(ctx context.Context, opts twitter.Options, instances int, handles []string) ([]*InstanceResult, error) {
	if instances <= 0 {
		instances = 1
	}

	results := make([]*InstanceResult, instances)
	var wg sync.WaitGroup

	loginCtx, cancel := context.WithTimeout(ctx, LoginWaitTimeout)
	defer cancel()

	for i := 0; i < instances; i++ {
		res := &InstanceResult{InstanceID: InstanceID(i, instances)}
		if i < len(handles) {
			res.Handle = handles[i]
		}
		results[i] = res

		wg.Add(1)
		go func(res *InstanceResult) {
			defer wg.Done()
			runInstance(ctx, loginCtx, opts, res)
		}(res)
	}

	wg.Wait()

	for _, res := range results {
		if res.Stats != nil {
			return results, nil
		}
	}
	return results, fmt.Errorf("没有任何账号实例完成取关，任务已终止")
}

func runInstance(ctx, loginCtx context.Context, opts twitter.Options, res *InstanceResult) {
	cookiePath := cookiePathFor(res.InstanceID)
	log := logrus.WithFields(logrus.Fields{
		"instance":     res.InstanceID,
		"cookies_path": cookiePath,
	})
	log.Info("启动账号实例")

	b := browser.NewBrowser(configs.IsHeadless(),
		browser.WithBinPath(configs.GetBinPath()),
		browser.WithCookiesPath(cookiePath),
	)
	page := b.NewPage()
	browser.ConfigurePage(page)
	defer func() {
		if page != nil {
			_ = page.Close()
		}
		b.Close()
	}()

	loginAction := twitter.NewLogin(page)
	loggedIn, err := loginAction.CheckLoginStatus(ctx)
	if err != nil || !loggedIn {
		log.Info("未登录，请在浏览器窗口中登录")
		if ok := loginAction.WaitForLogin(loginCtx); !ok {
			if loginCtx.Err() != nil {
				res.Error = "登录等待超时或被取消"
			} else {
				res.Error = "登录失败"
			}
			return
		}
		log.Info("登录成功")
	}

	// 登录成功后立即保存，避免取关中途出错丢失会话
	if err := SavePageCookiesToPath(page, cookiePath); err != nil {
		log.WithError(err).Warn("保存 cookies 失败")
	}

	if res.Handle == "" {
		res.Handle = configs.GetUsername()
	}
	if res.Handle == "" {
		handle, err := loginAction.ResolveHandle(ctx)
		if err != nil {
			res.Error = fmt.Sprintf("无法识别当前账号: %v", err)
			return
		}
		res.Handle = handle
	}

	stats, err := twitter.RunOnPage(ctx, page, res.Handle, opts)
	res.Stats = stats
	if err != nil {
		res.Error = err.Error()
	}

	if err := SavePageCookiesToPath(page, cookiePath); err != nil {
		log.WithError(err).Warn("保存 cookies 失败")
	}
}

// SavePageCookiesToPath 将当前页面的 cookies 保存到指定文件路径
func SavePageCookiesToPath(page *rod.Page, cookiePath string) error {
	cks, err := page.Browser().GetCookies()
	if err != nil {
		return err
	}

	data, err := json.Marshal(cks)
	if err != nil {
		return err
	}

	return cookies.NewLoadCookie(cookiePath).SaveCookies(data)
}
