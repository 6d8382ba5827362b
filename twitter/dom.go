package twitter

import "context"

// Box 元素相对视口的位置（getBoundingClientRect）
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center 返回盒子中心点
func (b Box) Center() (float64, float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// 合成鼠标事件类型
const (
	EventMouseEnter = "mouseenter"
	EventMouseOver  = "mouseover"
	EventClick      = "click"
)

// MouseEvent 派发到元素上的合成鼠标事件，bubbles/cancelable 恒为 true
type MouseEvent struct {
	Type string
	// Positioned 为 true 时携带 clientX/clientY
	Positioned bool
	X, Y       float64
}

// Document 一个页面的 DOM，只暴露取关流程需要的操作。
// Query 找不到元素时返回 found=false，不返回错误
type Document interface {
	Query(ctx context.Context, selector string) (Node, bool, error)
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	// ScrollBy 平滑滚动 fraction 个视口高度
	ScrollBy(ctx context.Context, fraction float64) error
}

// Node 页面中的一个元素引用，可能已经从文档中移除
type Node interface {
	// Connected 元素是否仍挂在文档上
	Connected(ctx context.Context) (bool, error)
	Closest(ctx context.Context, selector string) (Node, bool, error)
	Query(ctx context.Context, selector string) (Node, bool, error)
	// Visible offsetParent 不为 null
	Visible(ctx context.Context) (bool, error)
	Box(ctx context.Context) (Box, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Text(ctx context.Context) (string, error)
	DispatchMouse(ctx context.Context, ev MouseEvent) error
	ScrollIntoView(ctx context.Context) error
	// Click 调用元素自身的 click()，不模拟鼠标
	Click(ctx context.Context) error
}
