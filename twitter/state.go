package twitter

import "time"

// RetryState 连续"零进展"批次计数
type RetryState struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// State 一次取关运行的可变状态，只属于单个 Run 调用
type State struct {
	Retry             RetryState `json:"retry"`
	TotalUnfollowed   int        `json:"total_unfollowed"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	BaseDelay         Range      `json:"base_delay"`
	NextBreakAt       int        `json:"next_break_at"`
}

func newState(opts Options, rnd Random) *State {
	s := &State{
		Retry:     RetryState{Limit: opts.RetryLimit},
		BaseDelay: opts.BaseDelay,
	}
	s.ScheduleBreak(rnd, opts.BreakEveryMin, opts.BreakEverySpread)
	return s
}

func (s *State) RetryLimitReached() bool {
	return s.Retry.Count >= s.Retry.Limit
}

func (s *State) AddRetry() {
	s.Retry.Count++
}

func (s *State) ResetRetry() {
	s.Retry.Count = 0
}

// RecordSuccess 一次确认成功的取关
func (s *State) RecordSuccess() {
	s.TotalUnfollowed++
	s.ConsecutiveErrors = 0
}

func (s *State) RecordFailure() {
	s.ConsecutiveErrors++
}

// AdaptiveDelay 当前的取关间隔区间
func (s *State) AdaptiveDelay() Range {
	return AdaptiveDelay(s.BaseDelay, s.ConsecutiveErrors)
}

func (s *State) BreakDue() bool {
	return s.TotalUnfollowed >= s.NextBreakAt
}

// ScheduleBreak 下一次休息安排在 min ~ min+spread-1 次取关之后
func (s *State) ScheduleBreak(rnd Random, min, spread int) {
	next := min
	if spread > 0 {
		next += rnd.Intn(spread)
	}
	s.NextBreakAt = s.TotalUnfollowed + next
}

// RunStats 一次运行的统计结果
type RunStats struct {
	Duration           time.Duration `json:"duration"`
	Batches            int           `json:"batches"`
	Candidates         int           `json:"candidates"`
	Unfollowed         int           `json:"unfollowed"`
	Failed             int           `json:"failed"`
	SkippedMutual      int           `json:"skipped_mutual"`
	SkippedStale       int           `json:"skipped_stale"`
	SkippedNoRow       int           `json:"skipped_no_row"`
	RateLimitPauses    int           `json:"rate_limit_pauses"`
	Breaks             int           `json:"breaks"`
	ConsecutiveErrors  int           `json:"consecutive_errors"`
	RateLimitSuspected bool          `json:"rate_limit_suspected"`
	UnfollowedAccounts []string      `json:"unfollowed_accounts"`
}
