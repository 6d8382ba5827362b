package twitter

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(doc Document, opts Options, rnd Random) (*Runner, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	return NewRunner(doc, opts, WithSleeper(sleeper), WithRandom(rnd)), sleeper
}

func TestRunUnfollowsAllNonFollowers(t *testing.T) {
	rows := nonFollowers(5)
	doc := newFakeDoc(confirmDirect, rows...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Unfollowed)
	assert.Equal(t, 5, doc.confirms)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 0, stats.ConsecutiveErrors)
	assert.False(t, stats.RateLimitSuspected)
	// 第一批之后还要经过 3 次空批次才结束
	assert.Equal(t, 3, doc.scrolls)

	for _, row := range rows {
		assert.True(t, row.unfollowed, row.id)
	}
	require.Len(t, stats.UnfollowedAccounts, 5)
	assert.Equal(t, "1000 User 0 @user0", stats.UnfollowedAccounts[0])
}

func TestRunHoversThenClicksAtJitteredPoint(t *testing.T) {
	rows := nonFollowers(1)
	doc := newFakeDoc(confirmDirect, rows...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	events := rows[0].button.events
	require.Len(t, events, 3)
	assert.Equal(t, EventMouseEnter, events[0].Type)
	assert.Equal(t, EventMouseOver, events[1].Type)
	assert.Equal(t, EventClick, events[2].Type)
	assert.True(t, events[2].Positioned)
	assert.InDelta(t, 140, events[2].X, 1e-9)
	assert.InDelta(t, 216, events[2].Y, 1e-9)

	confirmEvents := doc.confirmNode.events
	require.Len(t, confirmEvents, 3)
	assert.Equal(t, EventMouseEnter, confirmEvents[0].Type)
	assert.Equal(t, EventClick, confirmEvents[2].Type)
}

func TestRunNeverClicksMutualFollowers(t *testing.T) {
	mutuals := []*fakeRow{
		{id: "1", name: "Friend", followsYou: true},
		{id: "2", name: "Another friend", followsYou: true},
	}
	others := nonFollowers(3)
	doc := newFakeDoc(confirmDirect, append(mutuals, others...)...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Unfollowed)
	for _, row := range mutuals {
		assert.False(t, row.unfollowed)
		assert.Empty(t, row.button.events)
	}
	// 互关账号每一批都会被重新查询到
	assert.Equal(t, 4, stats.Batches)
	assert.Equal(t, 8, stats.SkippedMutual)
}

func TestRunStopsWhenOnlyMutualFollowersRemain(t *testing.T) {
	doc := newFakeDoc(confirmDirect, &fakeRow{id: "1", followsYou: true})
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Unfollowed)
	assert.Equal(t, DefaultRetryLimit, stats.Batches)
	assert.Equal(t, DefaultRetryLimit-1, doc.scrolls)
}

func TestRunRetryLimit(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		wantScrolls int
	}{
		{name: "默认 3 次", limit: 0, wantScrolls: 2},
		{name: "自定义 5 次", limit: 5, wantScrolls: 4},
		{name: "1 次", limit: 1, wantScrolls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newFakeDoc(confirmDirect)
			runner, _ := newTestRunner(doc, Options{RetryLimit: tt.limit}, stubRandom{f: 0.5})

			stats, err := runner.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantScrolls, doc.scrolls)
			assert.Equal(t, 0, stats.Batches)
		})
	}
}

func TestRunEmptyPagePacing(t *testing.T) {
	doc := newFakeDoc(confirmDirect)
	runner, sleeper := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	want := []time.Duration{
		2500 * time.Millisecond, // 空批次后 2-3s
		1500 * time.Millisecond, // 滚动后 1-2s
		2500 * time.Millisecond,
		1500 * time.Millisecond,
	}
	assert.Equal(t, want, sleeper.durations)
}

func TestRunLoadsMoreAfterScroll(t *testing.T) {
	doc := newFakeDoc(confirmDirect, nonFollowers(2)...)
	doc.pages = [][]*fakeRow{{{id: "2000", name: "Late"}}}
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Unfollowed)
	assert.Equal(t, 2, stats.Batches)
}

func TestRunRateLimitBackoff(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "小写", text: "You have reached your limit for unfollowing accounts."},
		{name: "大写", text: "Rate LIMIT exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newFakeDoc(confirmDirect, nonFollowers(1)...)
			doc.dialogText = tt.text
			runner, sleeper := newTestRunner(doc, Options{}, rand.New(rand.NewSource(42)))

			stats, err := runner.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, stats.RateLimitPauses)
			assert.Len(t, sleeper.between(60*time.Second, 90*time.Second), 1)
			assert.Equal(t, 1, stats.Unfollowed)
		})
	}
}

func TestRunIgnoresDialogWithoutLimitText(t *testing.T) {
	doc := newFakeDoc(confirmDirect, nonFollowers(1)...)
	doc.dialogText = "Welcome back!"
	runner, sleeper := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.RateLimitPauses)
	assert.Empty(t, sleeper.atLeast(60*time.Second))
}

func TestRunConfirmationNeverAppears(t *testing.T) {
	doc := newFakeDoc(confirmNever, nonFollowers(2)...)
	runner, sleeper := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Unfollowed)
	assert.Equal(t, 6, stats.Failed)
	assert.Equal(t, 6, stats.ConsecutiveErrors)
	assert.True(t, stats.RateLimitSuspected)
	assert.Equal(t, 0, doc.confirms)
	assert.Empty(t, doc.confirmNode.events)
	// 每次失败都会尝试关闭弹窗
	assert.Equal(t, 6, doc.closeClicks)

	// 失败后的间隔按 max(1, errors*0.5) 放大：3s, 3s, 4.5s, 6s, 7.5s, 9s
	want := []time.Duration{
		3 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6 * time.Second,
		7500 * time.Millisecond,
		9 * time.Second,
	}
	assert.Equal(t, want, sleeper.atLeast(3*time.Second))
}

func TestRunConfirmationHidden(t *testing.T) {
	doc := newFakeDoc(confirmHidden, nonFollowers(1)...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Unfollowed)
	assert.Equal(t, 3, stats.Failed)
	assert.False(t, doc.confirmNode.clicked())
}

func TestRunConfirmationInsideDialog(t *testing.T) {
	doc := newFakeDoc(confirmInDialog, nonFollowers(3)...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Unfollowed)
	assert.Equal(t, 0, stats.Failed)
}

func TestRunSkipsStaleButtons(t *testing.T) {
	rows := nonFollowers(3)
	rows[0].detachOnConfirm = rows[1]
	doc := newFakeDoc(confirmDirect, rows...)
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Unfollowed)
	assert.Equal(t, 1, stats.SkippedStale)
	assert.Empty(t, rows[1].button.events)
}

func TestRunSkipsButtonsOutsideUserCell(t *testing.T) {
	doc := newFakeDoc(confirmDirect, &fakeRow{id: "1", noCell: true})
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Unfollowed)
	assert.Equal(t, DefaultRetryLimit, stats.SkippedNoRow)
	assert.Empty(t, doc.rows[0].button.events)
}

func TestRunTakesScheduledBreak(t *testing.T) {
	doc := newFakeDoc(confirmDirect, nonFollowers(12)...)
	runner, sleeper := newTestRunner(doc, Options{}, stubRandom{f: 0.5, n: 0})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, stats.Unfollowed)
	assert.Equal(t, 1, stats.Breaks)
	assert.Len(t, sleeper.between(10500*time.Millisecond, 10500*time.Millisecond), 1)
}

func TestRunHoversRowSometimes(t *testing.T) {
	rows := nonFollowers(1)
	doc := newFakeDoc(confirmDirect, rows...)

	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.1})
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rows[0].cell.events, 2)
	assert.Equal(t, EventMouseEnter, rows[0].cell.events[0].Type)
	assert.Equal(t, EventMouseOver, rows[0].cell.events[1].Type)
}

func TestRunRowHoverDisabled(t *testing.T) {
	rows := nonFollowers(1)
	doc := newFakeDoc(confirmDirect, rows...)

	runner, _ := newTestRunner(doc, Options{RowHoverProbability: -1}, stubRandom{f: 0})
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, rows[0].cell.events)
}

func TestRunQueryErrorCountsAsEmpty(t *testing.T) {
	doc := newFakeDoc(confirmDirect, nonFollowers(2)...)
	doc.queryErr = errors.New("target closed")
	runner, _ := newTestRunner(doc, Options{}, stubRandom{f: 0.5})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Batches)
	assert.Equal(t, 2, doc.scrolls)
}

func TestRunContextCanceled(t *testing.T) {
	doc := newFakeDoc(confirmDirect, nonFollowers(5)...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeper := &recordingSleeper{onSleep: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	runner := NewRunner(doc, Options{}, WithSleeper(sleeper), WithRandom(stubRandom{f: 0.5}))

	stats, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Less(t, stats.Unfollowed, 5)
	assert.Equal(t, 0, stats.Failed)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, DefaultRetryLimit, opts.RetryLimit)
	assert.Equal(t, Seconds(2, 4), opts.BaseDelay)
	assert.Equal(t, Seconds(60, 90), opts.RateLimitPause)
	assert.Equal(t, Seconds(7, 14), opts.BreakPause)
	assert.Equal(t, DefaultRowHoverProbability, opts.RowHoverProbability)
	assert.Equal(t, 3*time.Second, opts.ConfirmTimeout)
	assert.Equal(t, DefaultSelectors(), opts.Selectors)

	custom := Options{
		RetryLimit: 5,
		BaseDelay:  Seconds(1, 2),
		Selectors:  Selectors{UserCell: `li.user`},
	}.withDefaults()
	assert.Equal(t, 5, custom.RetryLimit)
	assert.Equal(t, Seconds(1, 2), custom.BaseDelay)
	assert.Equal(t, `li.user`, custom.Selectors.UserCell)
	assert.Equal(t, SelectorConfirmButton, custom.Selectors.ConfirmButton)
}

func TestRowHoverProbabilityDefaults(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: DefaultRowHoverProbability},
		{in: 1.5, want: DefaultRowHoverProbability},
		{in: 1, want: 1},
		{in: 0.5, want: 0.5},
		{in: -1, want: -1},
	}

	for _, tt := range tests {
		got := Options{RowHoverProbability: tt.in}.withDefaults().RowHoverProbability
		assert.Equal(t, tt.want, got, "input %.2f", tt.in)
	}
}
