package plugin

// Built-in plugin names.
const (
	DismissModal     = "dismiss-modal"
	ViewMoreComments = "view-more-comments"
	ExpandComments   = "expand-comments"
	MoreReplies      = "more-replies"
	ScrollToBottom   = "scroll-to-bottom"
)

// Builtin returns a registry with the comment-page plugins in their default order.
// A modal blocks clicks on the page beneath it, so dismiss-modal comes first.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(NewClick(DismissModal, `button[aria-label="Close"]:has(svg[icon-name="close-outline"])`, ""))
	r.Register(NewClick(ViewMoreComments, "button", "View more comments"))
	r.Register(NewClick(ExpandComments, `button:has(svg[icon-name="join-outline"])`, ""))
	r.Register(NewClick(MoreReplies, "button", "more replies"))
	r.Register(NewScroll(ScrollToBottom))
	return r
}
