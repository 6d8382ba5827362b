package twitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type stubRandom struct {
	f float64
	n int
}

func (s stubRandom) Float64() float64 { return s.f }
func (s stubRandom) Intn(int) int     { return s.n }

// recordingSleeper 记录每次等待的时长，不真正等待
type recordingSleeper struct {
	mu        sync.Mutex
	durations []time.Duration
	// onSleep 在第 n 次等待时调用（从 1 开始）
	onSleep func(n int)
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.durations = append(s.durations, d)
	n := len(s.durations)
	s.mu.Unlock()

	if s.onSleep != nil {
		s.onSleep(n)
	}
	return ctx.Err()
}

func (s *recordingSleeper) atLeast(min time.Duration) []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []time.Duration
	for _, d := range s.durations {
		if d >= min {
			out = append(out, d)
		}
	}
	return out
}

func (s *recordingSleeper) between(min, max time.Duration) []time.Duration {
	var out []time.Duration
	for _, d := range s.atLeast(min) {
		if d <= max {
			out = append(out, d)
		}
	}
	return out
}

type confirmMode int

const (
	// 确认按钮直接出现在文档中
	confirmDirect confirmMode = iota
	// 确认按钮只能在弹窗内找到
	confirmInDialog
	// 确认按钮出现但不可见
	confirmHidden
	// 确认按钮永远不出现
	confirmNever
)

type fakeRow struct {
	id         string
	name       string
	followsYou bool
	noCell     bool
	detached   bool
	unfollowed bool
	// 确认这一行时顺带把 detachOnConfirm 从文档移除（模拟列表重新渲染）
	detachOnConfirm *fakeRow

	button *fakeNode
	cell   *fakeNode
}

// fakeDoc 是关注列表页面的内存模型，只认识 DefaultSelectors 里的标记
type fakeDoc struct {
	mode        confirmMode
	rows        []*fakeRow
	pending     *fakeRow
	dialogText  string
	pages       [][]*fakeRow
	queryErr    error
	scrolls     int
	closeClicks int
	confirms    int

	confirmNode *fakeNode
	dialogNode  *fakeNode
	closeNode   *fakeNode
}

func newFakeDoc(mode confirmMode, rows ...*fakeRow) *fakeDoc {
	d := &fakeDoc{mode: mode}
	d.confirmNode = &fakeNode{doc: d, kind: "confirm"}
	d.dialogNode = &fakeNode{doc: d, kind: "dialog"}
	d.closeNode = &fakeNode{doc: d, kind: "close"}
	d.addRows(rows...)
	return d
}

func (d *fakeDoc) addRows(rows ...*fakeRow) {
	for _, row := range rows {
		row.button = &fakeNode{doc: d, kind: "button", row: row}
		row.cell = &fakeNode{doc: d, kind: "cell", row: row}
		d.rows = append(d.rows, row)
	}
}

func nonFollowers(n int) []*fakeRow {
	rows := make([]*fakeRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, &fakeRow{id: fmt.Sprintf("%d", 1000+i), name: fmt.Sprintf("User %d @user%d", i, i)})
	}
	return rows
}

func (d *fakeDoc) dialogOpen() bool {
	return d.pending != nil && d.mode != confirmNever
}

func (d *fakeDoc) Query(_ context.Context, selector string) (Node, bool, error) {
	switch selector {
	case SelectorConfirmButton:
		if d.dialogOpen() && d.mode != confirmInDialog {
			return d.confirmNode, true, nil
		}
	case SelectorRateLimitDialog:
		if d.dialogText != "" || d.dialogOpen() {
			return d.dialogNode, true, nil
		}
	}
	return nil, false, nil
}

func (d *fakeDoc) QueryAll(_ context.Context, selector string) ([]Node, error) {
	switch selector {
	case SelectorUnfollowButtons:
		if d.queryErr != nil {
			return nil, d.queryErr
		}
		var nodes []Node
		for _, row := range d.rows {
			if !row.detached && !row.unfollowed {
				nodes = append(nodes, row.button)
			}
		}
		return nodes, nil
	case SelectorDialogs:
		if d.dialogText != "" || d.dialogOpen() {
			return []Node{d.dialogNode}, nil
		}
	case SelectorCloseButtons:
		if d.dialogText != "" || d.pending != nil {
			return []Node{d.closeNode}, nil
		}
	}
	return nil, nil
}

func (d *fakeDoc) ScrollBy(_ context.Context, _ float64) error {
	d.scrolls++
	if len(d.pages) > 0 {
		d.addRows(d.pages[0]...)
		d.pages = d.pages[1:]
	}
	return nil
}

type fakeNode struct {
	doc    *fakeDoc
	kind   string
	row    *fakeRow
	events []MouseEvent
}

func (n *fakeNode) Connected(context.Context) (bool, error) {
	if n.row != nil {
		return !n.row.detached, nil
	}
	return true, nil
}

func (n *fakeNode) Closest(_ context.Context, selector string) (Node, bool, error) {
	if n.kind == "button" && selector == SelectorUserCell && !n.row.noCell {
		return n.row.cell, true, nil
	}
	return nil, false, nil
}

func (n *fakeNode) Query(_ context.Context, selector string) (Node, bool, error) {
	switch {
	case n.kind == "cell" && selector == SelectorFollowIndicator:
		if n.row.followsYou {
			return &fakeNode{doc: n.doc, kind: "indicator", row: n.row}, true, nil
		}
	case n.kind == "dialog" && selector == SelectorConfirmButton:
		if n.doc.dialogOpen() {
			return n.doc.confirmNode, true, nil
		}
	}
	return nil, false, nil
}

func (n *fakeNode) Visible(context.Context) (bool, error) {
	if n.kind == "confirm" {
		return n.doc.mode != confirmHidden, nil
	}
	return true, nil
}

func (n *fakeNode) Box(context.Context) (Box, error) {
	return Box{Left: 100, Top: 200, Width: 80, Height: 32}, nil
}

func (n *fakeNode) Attribute(_ context.Context, name string) (string, bool, error) {
	if n.kind == "button" && name == "data-testid" {
		return n.row.id + "-unfollow", true, nil
	}
	return "", false, nil
}

func (n *fakeNode) Text(context.Context) (string, error) {
	switch n.kind {
	case "cell":
		return n.row.name, nil
	case "dialog":
		if n.doc.dialogText != "" {
			return n.doc.dialogText, nil
		}
		return "Unfollow this account?", nil
	}
	return "", nil
}

func (n *fakeNode) DispatchMouse(_ context.Context, ev MouseEvent) error {
	n.events = append(n.events, ev)
	if ev.Type != EventClick {
		return nil
	}

	switch n.kind {
	case "button":
		n.doc.pending = n.row
	case "confirm":
		if n.doc.pending == nil {
			return errors.New("confirm clicked without pending unfollow")
		}
		n.doc.confirms++
		n.doc.pending.unfollowed = true
		if other := n.doc.pending.detachOnConfirm; other != nil {
			other.detached = true
		}
		n.doc.pending = nil
	}
	return nil
}

func (n *fakeNode) ScrollIntoView(context.Context) error {
	return nil
}

func (n *fakeNode) Click(context.Context) error {
	if n.kind == "close" {
		n.doc.closeClicks++
		n.doc.pending = nil
		n.doc.dialogText = ""
	}
	return nil
}

func (n *fakeNode) clicked() bool {
	for _, ev := range n.events {
		if ev.Type == EventClick {
			return true
		}
	}
	return false
}
