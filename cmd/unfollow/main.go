package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/x-unfollow/accounts"
	"github.com/xpzouying/x-unfollow/configs"
	"github.com/xpzouying/x-unfollow/cookies"
	"github.com/xpzouying/x-unfollow/logging"
	"github.com/xpzouying/x-unfollow/twitter"
)

func resetCookiesFiles() error {
	basePath := cookies.GetCookiesFilePath()
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "cookies"
	}

	if err := os.Remove(basePath); err != nil && !os.IsNotExist(err) {
		return err
	}

	// 同目录下各账号实例的 cookies 文件
	pattern := filepath.Join(dir, fmt.Sprintf("%s_*%s", name, ext))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, p := range matches {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func splitHandles(s string) []string {
	var handles []string
	for _, h := range strings.Split(s, ",") {
		h = strings.TrimPrefix(strings.TrimSpace(h), "@")
		if h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}

// buildOptions 校验命令行参数并生成 Runner 配置
func buildOptions(retryLimit int, minDelay, maxDelay, rowHover float64) (twitter.Options, error) {
	opts := twitter.DefaultOptions()

	if retryLimit <= 0 {
		return opts, fmt.Errorf("retry-limit must be positive, got %d", retryLimit)
	}
	if minDelay < 0 || maxDelay < minDelay || maxDelay == 0 {
		return opts, fmt.Errorf("invalid delay range: %.1f-%.1fs", minDelay, maxDelay)
	}
	if rowHover > 1 {
		return opts, fmt.Errorf("row-hover must be at most 1, got %.2f", rowHover)
	}

	opts.RetryLimit = retryLimit
	opts.BaseDelay = twitter.Seconds(minDelay, maxDelay)
	opts.RowHoverProbability = rowHover
	return opts, nil
}

// 命令行直接运行取关（支持多个账号并行），不依赖 HTTP/MCP 服务
func main() {
	defaults := twitter.DefaultOptions()

	var (
		headless     bool
		binPath      string
		users        string
		instances    int
		retryLimit   int
		minDelay     float64
		maxDelay     float64
		rowHover     float64
		resetCookies bool
		logFile      string
		logLevel     string
	)

	flag.BoolVar(&headless, "headless", false, "是否无头模式，默认 false（有界面，便于手动登录）")
	flag.StringVar(&binPath, "bin", "", "浏览器二进制文件路径（可选，不传则使用 ROD_BROWSER_BIN 环境变量）")
	flag.StringVar(&users, "user", "", "要清理的账号 handle，多个账号用逗号分隔，按顺序对应各实例；为空时自动识别")
	flag.IntVar(&instances, "instances", 0, "账号实例数量，默认等于 -user 的个数，至少 1")
	flag.IntVar(&retryLimit, "retry-limit", defaults.RetryLimit,
		fmt.Sprintf("连续多少批没有成功取关后结束，默认 %d", defaults.RetryLimit))
	flag.Float64Var(&minDelay, "min-delay", defaults.BaseDelay.Min.Seconds(), "每次取关后的最短等待（秒）")
	flag.Float64Var(&maxDelay, "max-delay", defaults.BaseDelay.Max.Seconds(), "每次取关后的最长等待（秒）")
	flag.Float64Var(&rowHover, "row-hover", defaults.RowHoverProbability, "处理前悬停用户行的概率，最大 1；0 使用默认值，负数关闭")
	flag.BoolVar(&resetCookies, "reset-cookies", false, "启动前清理 cookies 文件并重新登录")
	flag.StringVar(&logFile, "log-file", "", "日志文件路径（可选）")
	flag.StringVar(&logLevel, "log-level", "", "日志级别，默认读取 LOG_LEVEL")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("加载 .env 失败")
	}
	logging.Setup(logging.Config{Level: logLevel, File: logFile})

	opts, err := buildOptions(retryLimit, minDelay, maxDelay, rowHover)
	if err != nil {
		logrus.Fatalf("invalid flags: %v", err)
	}

	if resetCookies {
		if err := resetCookiesFiles(); err != nil {
			logrus.Fatalf("failed to reset cookies: %v", err)
		}
		logrus.Info("cookies 已清理（含各账号实例文件），将重新登录")
	}

	if headless {
		logrus.Warn("当前以无头模式运行，未登录的账号无法手动登录，建议第一次使用时 headless=false")
	}

	if binPath == "" {
		binPath = os.Getenv("ROD_BROWSER_BIN")
	}
	configs.InitHeadless(headless)
	configs.SetBinPath(binPath)

	handles := splitHandles(users)
	if instances <= 0 {
		instances = len(handles)
	}
	if instances <= 0 {
		instances = 1
	}
	if instances == 1 && len(handles) == 1 {
		configs.SetUsername(handles[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"instances":   instances,
		"retry_limit": opts.RetryLimit,
		"delay":       opts.BaseDelay.String(),
	}).Info("开始取关未回关的账号")

	results, err := accounts.RunParallelUnfollow(ctx, opts, instances, handles)
	if err != nil {
		logrus.WithError(err).Error("取关过程中出现错误")
	}

	if printSummary(results) == 0 {
		logrus.Fatal("所有账号均未完成取关，请检查登录状态或网络情况")
	}
}

// printSummary 打印每个账号的结果，返回完成的账号数
func printSummary(results []*accounts.InstanceResult) int {
	title := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)

	var successCount int
	for _, res := range results {
		if res == nil {
			continue
		}

		name := res.InstanceID
		if res.Handle != "" {
			name = strings.TrimSpace(name + " @" + res.Handle)
		}
		if name == "" {
			name = "default"
		}

		if res.Stats == nil {
			fail.Printf("账号 %s 失败：%s\n", name, res.Error)
			continue
		}
		successCount++

		st := res.Stats
		title.Printf("账号 %s 取关完成：\n", name)
		ok.Printf("- 已取关: %d 个\n", st.Unfollowed)
		fmt.Printf("- 耗时: %v\n- 批次: %d\n- 候选: %d\n- 跳过互关: %d\n- 跳过失效: %d\n- 失败: %d\n- 休息: %d 次\n- 限流暂停: %d 次\n",
			st.Duration.Round(time.Second), st.Batches, st.Candidates,
			st.SkippedMutual, st.SkippedStale+st.SkippedNoRow, st.Failed,
			st.Breaks, st.RateLimitPauses,
		)
		if st.RateLimitSuspected {
			warn.Printf("- 连续失败 %d 次，可能已被限流，请稍后再试\n", st.ConsecutiveErrors)
		}
		if res.Error != "" {
			warn.Printf("- 提前结束: %s\n", res.Error)
		}
		fmt.Println()
	}
	return successCount
}
