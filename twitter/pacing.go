package twitter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Random 随机源，测试中可替换为固定值
type Random interface {
	Float64() float64
	Intn(n int) int
}

func newRandom() Random {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Sleeper 所有等待都经过它，测试中可以记录时长而不真正等待
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc 把普通函数适配成 Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Range 闭区间 [Min, Max] 的随机时长
type Range struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Seconds 以秒为单位构造 Range
func Seconds(min, max float64) Range {
	return Range{
		Min: time.Duration(min * float64(time.Second)),
		Max: time.Duration(max * float64(time.Second)),
	}
}

// Millis 以毫秒为单位构造 Range
func Millis(min, max int) Range {
	return Range{
		Min: time.Duration(min) * time.Millisecond,
		Max: time.Duration(max) * time.Millisecond,
	}
}

// Pick 在区间内均匀取值
func (r Range) Pick(rnd Random) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rnd.Float64()*float64(r.Max-r.Min))
}

// Scale 区间两端同时乘以 f
func (r Range) Scale(f float64) Range {
	return Range{
		Min: time.Duration(float64(r.Min) * f),
		Max: time.Duration(float64(r.Max) * f),
	}
}

func (r Range) String() string {
	return fmt.Sprintf("%.1f-%.1fs", r.Min.Seconds(), r.Max.Seconds())
}

// ErrorMultiplier 连续失败次数对应的间隔倍数：max(1, errors*0.5)
func ErrorMultiplier(consecutiveErrors int) float64 {
	return math.Max(1, float64(consecutiveErrors)*0.5)
}

// AdaptiveDelay 根据连续失败次数放大基础间隔，一次成功后回到基础值
func AdaptiveDelay(base Range, consecutiveErrors int) Range {
	return base.Scale(ErrorMultiplier(consecutiveErrors))
}

// chance 以概率 p 返回 true，p <= 0 时永远为 false
func chance(rnd Random, p float64) bool {
	if p <= 0 {
		return false
	}
	return rnd.Float64() < p
}
