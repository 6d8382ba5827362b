package twitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetryLimit          = 3
	DefaultBreakEveryMin       = 10
	DefaultBreakEverySpread    = 16
	DefaultRowHoverProbability = 0.2
	DefaultClickJitter         = 0.15
	DefaultConfirmTimeout      = 3 * time.Second
	DefaultPollInterval        = 100 * time.Millisecond
	DefaultScrollFraction      = 0.5
	DefaultHighErrorThreshold  = 5

	// 日志里账号名的最大显示宽度
	accountLabelWidth = 24
)

var (
	// ErrConfirmationNotFound 点击取关后确认按钮没有出现或不可见
	ErrConfirmationNotFound = errors.New("confirmation button not found")

	DefaultBaseDelay      = Seconds(2, 4)
	DefaultBreakPause     = Seconds(7, 14)
	DefaultRateLimitPause = Seconds(60, 90)

	// 固定的拟人停顿
	rowHoverPause   = Seconds(0.5, 1)
	preClickPause   = Seconds(0.5, 1)
	preConfirmPause = Seconds(0.3, 0.6)
	loadPause       = Seconds(1, 2)
	batchPause      = Seconds(1, 2)
	emptyPause      = Seconds(2, 3)
)

// Options 取关配置
type Options struct {
	// 连续多少个批次没有任何成功取关后结束
	RetryLimit int `json:"retry_limit"`
	// 每次取关后的基础间隔，随连续失败次数放大
	BaseDelay Range `json:"base_delay"`
	// 每 BreakEveryMin ~ BreakEveryMin+BreakEverySpread-1 次取关休息一次
	BreakEveryMin    int   `json:"break_every_min"`
	BreakEverySpread int   `json:"break_every_spread"`
	BreakPause       Range `json:"break_pause"`
	// 检测到频率限制弹窗后的暂停
	RateLimitPause Range `json:"rate_limit_pause"`
	// 处理前先悬停用户行的概率，最大 1；0 或大于 1 使用默认值，小于 0 表示关闭
	RowHoverProbability float64 `json:"row_hover_probability"`
	// 点击位置偏移占宽高的比例
	ClickJitter    float64       `json:"click_jitter"`
	ConfirmTimeout time.Duration `json:"confirm_timeout"`
	PollInterval   time.Duration `json:"poll_interval"`
	// 每批之间滚动的视口高度比例
	ScrollFraction float64 `json:"scroll_fraction"`
	// 结束时连续失败超过该值会提示可能被限流
	HighErrorThreshold int       `json:"high_error_threshold"`
	Selectors          Selectors `json:"selectors"`
}

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

// withDefaults 仅当调用方未显式配置时才使用默认值
func (o Options) withDefaults() Options {
	if o.RetryLimit <= 0 {
		o.RetryLimit = DefaultRetryLimit
	}
	if o.BaseDelay.Max <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.BreakEveryMin <= 0 {
		o.BreakEveryMin = DefaultBreakEveryMin
	}
	if o.BreakEverySpread <= 0 {
		o.BreakEverySpread = DefaultBreakEverySpread
	}
	if o.BreakPause.Max <= 0 {
		o.BreakPause = DefaultBreakPause
	}
	if o.RateLimitPause.Max <= 0 {
		o.RateLimitPause = DefaultRateLimitPause
	}
	if o.RowHoverProbability == 0 || o.RowHoverProbability > 1 {
		o.RowHoverProbability = DefaultRowHoverProbability
	}
	if o.ClickJitter <= 0 {
		o.ClickJitter = DefaultClickJitter
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ScrollFraction <= 0 {
		o.ScrollFraction = DefaultScrollFraction
	}
	if o.HighErrorThreshold <= 0 {
		o.HighErrorThreshold = DefaultHighErrorThreshold
	}
	o.Selectors = o.Selectors.withDefaults()
	return o
}

// Runner 在关注列表页面上取关未回关的账号。
// 同一时间只处理一个候选，点击、确认、等待全部完成后才处理下一个
type Runner struct {
	doc     Document
	opts    Options
	sleeper Sleeper
	rnd     Random
	log     *logrus.Entry
}

type RunnerOption func(*Runner)

func WithSleeper(s Sleeper) RunnerOption {
	return func(r *Runner) {
		r.sleeper = s
	}
}

func WithRandom(rnd Random) RunnerOption {
	return func(r *Runner) {
		r.rnd = rnd
	}
}

func WithLogger(l *logrus.Entry) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner 创建取关执行器
func NewRunner(doc Document, opts Options, options ...RunnerOption) *Runner {
	r := &Runner{
		doc:     doc,
		opts:    opts.withDefaults(),
		sleeper: timerSleeper{},
		rnd:     newRandom(),
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Options 返回补齐默认值之后的配置
func (r *Runner) Options() Options {
	return r.opts
}

// Run 反复"滚动 → 查询候选 → 逐个取关"，直到连续 RetryLimit 个批次没有进展。
// ctx 结束时返回已有的统计和 ctx.Err()
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	st := newState(r.opts, r.rnd)
	stats := &RunStats{UnfollowedAccounts: make([]string, 0)}
	startTime := time.Now()

	finish := func(err error) (*RunStats, error) {
		stats.Duration = time.Since(startTime)
		stats.ConsecutiveErrors = st.ConsecutiveErrors
		stats.RateLimitSuspected = st.ConsecutiveErrors > r.opts.HighErrorThreshold
		return stats, err
	}

	r.log.Info("开始取关未回关的账号")
	r.log.Infof("基础间隔: %s", st.BaseDelay)
	r.log.Infof("首次休息安排在第 %d 次取关后", st.NextBreakAt)

	sel := r.opts.Selectors
	for first := true; ; first = false {
		if !first {
			if err := r.doc.ScrollBy(ctx, r.opts.ScrollFraction); err != nil {
				if ctx.Err() != nil {
					return finish(ctx.Err())
				}
				r.log.Warnf("滚动页面失败: %v", err)
			}
			if err := r.wait(ctx, loadPause); err != nil {
				return finish(err)
			}
		}

		buttons, err := r.doc.QueryAll(ctx, sel.UnfollowButtons)
		if err != nil {
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			// 查询失败和没有候选一样处理
			r.log.Warnf("查询取关按钮失败: %v", err)
			buttons = nil
		}

		idle := emptyPause
		if len(buttons) > 0 {
			stats.Batches++
			n, err := r.unfollowNonFollowers(ctx, st, stats, buttons)
			if err != nil {
				return finish(err)
			}
			if n == 0 {
				st.AddRetry()
			} else {
				st.ResetRetry()
			}
			idle = batchPause
		} else {
			st.AddRetry()
		}

		if st.RetryLimitReached() {
			break
		}
		r.log.Debugf("重试计数 %d/%d", st.Retry.Count, st.Retry.Limit)

		if err := r.wait(ctx, idle); err != nil {
			return finish(err)
		}
	}

	r.log.Infof("完成！共取关 %d 个账号", st.TotalUnfollowed)
	if st.ConsecutiveErrors > r.opts.HighErrorThreshold {
		r.log.Warnf("连续失败次数较多 (%d)，可能已被限流", st.ConsecutiveErrors)
	}
	return finish(nil)
}

// unfollowNonFollowers 处理一批候选，返回本批成功取关的数量。
// 只有 ctx 结束才返回错误，单个账号失败不会中断批次
func (r *Runner) unfollowNonFollowers(ctx context.Context, st *State, stats *RunStats, buttons []Node) (int, error) {
	r.log.Infof("发现 %d 个待检查的账号", len(buttons))
	sel := r.opts.Selectors
	unfollowed := 0

	for _, button := range buttons {
		if err := ctx.Err(); err != nil {
			return unfollowed, err
		}
		stats.Candidates++

		if r.rateLimited(ctx) {
			stats.RateLimitPauses++
			r.log.Warnf("检测到频率限制弹窗，暂停 %s...", r.opts.RateLimitPause)
			if err := r.wait(ctx, r.opts.RateLimitPause); err != nil {
				return unfollowed, err
			}
		}

		if st.BreakDue() {
			stats.Breaks++
			r.log.Infof("已取关 %d 个，休息一会儿...", st.TotalUnfollowed)
			if err := r.wait(ctx, r.opts.BreakPause); err != nil {
				return unfollowed, err
			}
			st.ScheduleBreak(r.rnd, r.opts.BreakEveryMin, r.opts.BreakEverySpread)
			r.log.Infof("下次休息安排在第 %d 次取关后", st.NextBreakAt)
		}

		// 上一次查询拿到的引用可能已经被页面重新渲染掉
		if ok, err := button.Connected(ctx); err != nil || !ok {
			stats.SkippedStale++
			continue
		}

		row, found, err := button.Closest(ctx, sel.UserCell)
		if err != nil || !found {
			stats.SkippedNoRow++
			continue
		}

		if chance(r.rnd, r.opts.RowHoverProbability) {
			if err := r.hover(ctx, row); err != nil && ctx.Err() != nil {
				return unfollowed, ctx.Err()
			}
			if err := r.wait(ctx, rowHoverPause); err != nil {
				return unfollowed, err
			}
		}

		_, followsYou, err := row.Query(ctx, sel.FollowIndicator)
		if err != nil {
			// 无法确认是否互关时不取关
			stats.SkippedStale++
			continue
		}
		if followsYou {
			stats.SkippedMutual++
			continue
		}

		label := r.describe(ctx, button, row)
		if err := r.unfollowUser(ctx, st, button); err != nil {
			if ctx.Err() != nil {
				return unfollowed, ctx.Err()
			}
			stats.Failed++
		} else {
			st.RecordSuccess()
			unfollowed++
			stats.Unfollowed++
			stats.UnfollowedAccounts = append(stats.UnfollowedAccounts, label)
			r.log.WithField("account", label).Infof("已取关，累计 %d 个", st.TotalUnfollowed)
		}

		if err := r.wait(ctx, st.AdaptiveDelay()); err != nil {
			return unfollowed, err
		}
	}

	r.log.Infof("本批取关 %d 个", unfollowed)
	return unfollowed, nil
}

// unfollowUser 点击取关按钮并确认。失败时计数、尝试关闭弹窗后返回错误
func (r *Runner) unfollowUser(ctx context.Context, st *State, button Node) (err error) {
	defer func() {
		if err == nil || ctx.Err() != nil {
			return
		}
		st.RecordFailure()
		r.log.Warnf("取关失败: %v", err)
		r.closeDialogs(ctx)
	}()

	sel := r.opts.Selectors

	if err := button.ScrollIntoView(ctx); err != nil {
		return err
	}
	if err := r.wait(ctx, preClickPause); err != nil {
		return err
	}
	if err := r.hoverThenClick(ctx, button); err != nil {
		return fmt.Errorf("click unfollow button: %w", err)
	}

	confirm, found, err := WaitForNode(ctx, r.doc, r.sleeper, sel.ConfirmButton, r.opts.ConfirmTimeout, r.opts.PollInterval)
	if err != nil {
		return err
	}
	if !found {
		confirm, found = r.findConfirmInDialogs(ctx)
	}
	if !found {
		return ErrConfirmationNotFound
	}

	visible, err := confirm.Visible(ctx)
	if err != nil {
		return fmt.Errorf("check confirmation visibility: %w", err)
	}
	if !visible {
		return fmt.Errorf("%w: not visible", ErrConfirmationNotFound)
	}

	if err := r.wait(ctx, preConfirmPause); err != nil {
		return err
	}
	if err := r.hoverThenClick(ctx, confirm); err != nil {
		return fmt.Errorf("click confirmation: %w", err)
	}
	return nil
}

// findConfirmInDialogs 在打开的弹窗内查找确认按钮
func (r *Runner) findConfirmInDialogs(ctx context.Context) (Node, bool) {
	sel := r.opts.Selectors

	dialogs, err := r.doc.QueryAll(ctx, sel.Dialogs)
	if err != nil {
		r.log.Debugf("查询弹窗失败: %v", err)
		return nil, false
	}
	for _, dialog := range dialogs {
		if confirm, found, err := dialog.Query(ctx, sel.ConfirmButton); err == nil && found {
			return confirm, true
		}
	}
	return nil, false
}

// closeDialogs 点击所有关闭按钮，错误忽略
func (r *Runner) closeDialogs(ctx context.Context) {
	buttons, err := r.doc.QueryAll(ctx, r.opts.Selectors.CloseButtons)
	if err != nil {
		r.log.Debugf("查询关闭按钮失败: %v", err)
		return
	}
	for _, b := range buttons {
		if err := b.Click(ctx); err != nil {
			r.log.Debugf("点击关闭按钮失败: %v", err)
		}
	}
}

// rateLimited 页面上的弹窗文字包含 "limit"
func (r *Runner) rateLimited(ctx context.Context) bool {
	dialog, found, err := r.doc.Query(ctx, r.opts.Selectors.RateLimitDialog)
	if err != nil || !found {
		return false
	}
	text, err := dialog.Text(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(text), "limit")
}

// describe 生成日志里用到的账号描述："<用户 id> <截断后的行文本>"
func (r *Runner) describe(ctx context.Context, button, row Node) string {
	var id string
	if testID, ok, err := button.Attribute(ctx, "data-testid"); err == nil && ok {
		id = strings.TrimSuffix(testID, "-unfollow")
	}

	text, err := row.Text(ctx)
	if err != nil {
		return id
	}
	text = runewidth.Truncate(strings.Join(strings.Fields(text), " "), accountLabelWidth, "…")

	switch {
	case id == "":
		return text
	case text == "":
		return id
	default:
		return id + " " + text
	}
}

func (r *Runner) wait(ctx context.Context, rng Range) error {
	d := rng.Pick(r.rnd)
	r.log.Debugf("等待 %.2fs...", d.Seconds())
	return r.sleeper.Sleep(ctx, d)
}
