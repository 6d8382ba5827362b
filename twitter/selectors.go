package twitter

// X 的 DOM 标记集中定义在这里。页面改版后标记失效时，
// 发现阶段只会得到 0 个候选，不会报错，需要在这里更新
const (
	SelectorUnfollowButtons = `[data-testid$="-unfollow"]`
	SelectorConfirmButton   = `[data-testid="confirmationSheetConfirm"]`
	SelectorUserCell        = `[data-testid="UserCell"]`
	SelectorFollowIndicator = `[data-testid="userFollowIndicator"]`
	SelectorDialogs         = `[role="dialog"], [data-testid="sheetDialog"]`
	SelectorRateLimitDialog = `[role="dialog"]`
	SelectorCloseButtons    = `[aria-label="Close"], [data-testid="sheetDialogClose"]`

	// 登录态与页面就绪判断
	SelectorLoggedIn      = `[data-testid="SideNav_NewTweet_Button"]`
	SelectorProfileLink   = `[data-testid="AppTabBar_Profile_Link"]`
	SelectorPrimaryColumn = `[data-testid="primaryColumn"]`
)

// Selectors 取关流程依赖的 DOM 标记
type Selectors struct {
	UnfollowButtons string `json:"unfollow_buttons"`
	ConfirmButton   string `json:"confirm_button"`
	UserCell        string `json:"user_cell"`
	FollowIndicator string `json:"follow_indicator"`
	Dialogs         string `json:"dialogs"`
	RateLimitDialog string `json:"rate_limit_dialog"`
	CloseButtons    string `json:"close_buttons"`
}

// DefaultSelectors 返回 x.com 当前使用的标记
func DefaultSelectors() Selectors {
	return Selectors{
		UnfollowButtons: SelectorUnfollowButtons,
		ConfirmButton:   SelectorConfirmButton,
		UserCell:        SelectorUserCell,
		FollowIndicator: SelectorFollowIndicator,
		Dialogs:         SelectorDialogs,
		RateLimitDialog: SelectorRateLimitDialog,
		CloseButtons:    SelectorCloseButtons,
	}
}

// withDefaults 为未设置的字段填充默认标记
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.UnfollowButtons == "" {
		s.UnfollowButtons = d.UnfollowButtons
	}
	if s.ConfirmButton == "" {
		s.ConfirmButton = d.ConfirmButton
	}
	if s.UserCell == "" {
		s.UserCell = d.UserCell
	}
	if s.FollowIndicator == "" {
		s.FollowIndicator = d.FollowIndicator
	}
	if s.Dialogs == "" {
		s.Dialogs = d.Dialogs
	}
	if s.RateLimitDialog == "" {
		s.RateLimitDialog = d.RateLimitDialog
	}
	if s.CloseButtons == "" {
		s.CloseButtons = d.CloseButtons
	}
	return s
}
