package twitter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// 悬停时两个事件之间的停顿
var hoverStepPause = Millis(100, 300)

// ClickPoint 盒子中心加上随机偏移，偏移量最多为宽高的 jitter 倍
func ClickPoint(box Box, rnd Random, jitter float64) (float64, float64) {
	cx, cy := box.Center()
	x := cx + (rnd.Float64()-0.5)*box.Width*jitter*2
	y := cy + (rnd.Float64()-0.5)*box.Height*jitter*2
	return x, y
}

// WaitForNode 每隔 interval 查询一次 selector，直到找到或累计等待超过 timeout。
// 超时返回 found=false 且 err=nil，只有 ctx 结束才返回错误
func WaitForNode(ctx context.Context, doc Document, sleeper Sleeper, selector string, timeout, interval time.Duration) (Node, bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var waited time.Duration
	for {
		node, found, err := doc.Query(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			logrus.Debugf("查询 %s 失败，继续等待: %v", selector, err)
		} else if found {
			return node, true, nil
		}

		if waited >= timeout {
			return nil, false, nil
		}
		if err := sleeper.Sleep(ctx, interval); err != nil {
			return nil, false, err
		}
		waited += interval
	}
}

// hover 依次派发 mouseenter、mouseover，模拟鼠标移入
func (r *Runner) hover(ctx context.Context, node Node) error {
	for _, typ := range []string{EventMouseEnter, EventMouseOver} {
		if err := node.DispatchMouse(ctx, MouseEvent{Type: typ}); err != nil {
			return err
		}
		if err := r.sleeper.Sleep(ctx, hoverStepPause.Pick(r.rnd)); err != nil {
			return err
		}
	}
	return nil
}

// humanClick 在元素范围内带随机偏移的位置派发 click
func (r *Runner) humanClick(ctx context.Context, node Node) error {
	box, err := node.Box(ctx)
	if err != nil {
		return err
	}

	x, y := ClickPoint(box, r.rnd, r.opts.ClickJitter)
	return node.DispatchMouse(ctx, MouseEvent{Type: EventClick, Positioned: true, X: x, Y: y})
}

// hoverThenClick 先悬停再点击，取关按钮和确认按钮都走这个流程
func (r *Runner) hoverThenClick(ctx context.Context, node Node) error {
	if err := r.hover(ctx, node); err != nil {
		return err
	}
	return r.humanClick(ctx, node)
}
