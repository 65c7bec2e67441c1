package integration

import (
	"encoding/json"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/usecase/filter"
	"slack-bridge/internal/usecase/notify"
	"slack-bridge/internal/usecase/render"
)

// ExtraTopLevelOnly restricts a comment rule to comments without a parent.
const ExtraTopLevelOnly = "top_level_only"

// Comment covers blog and product comments.
type Comment struct{}

// NewComment returns the comment adapter.
func NewComment() *Comment { return &Comment{} }

// Name implements notify.Adapter.
func (*Comment) Name() string { return "comment" }

// Triggers implements notify.Adapter.
func (*Comment) Triggers() []entity.Trigger {
	return []entity.Trigger{entity.TriggerCommentPosted}
}

// Register adds the top-level predicate and comment placeholders.
func (*Comment) Register(r *notify.Registry) {
	t := entity.TriggerCommentPosted
	r.Predicate(t, func(rule entity.Rule, evt entity.Event) filter.Decision {
		d, _ := evt.Payload.Detail.(entity.CommentDetail)
		if rule.Extra(ExtraTopLevelOnly) == "1" && d.ParentID != 0 {
			return filter.BailWith("reply_comment")
		}
		return filter.Continue
	})
	r.Contribute(t, func(evt entity.Event, repl render.Replacements) {
		d, _ := evt.Payload.Detail.(entity.CommentDetail)
		repl.Set("comment_author", d.Author)
		repl.Set("comment_content", d.Content)
		repl.Set("post_title", d.PostTitle)
	})
	r.Hint(t,
		render.Hint{Token: "%comment_author%", Description: "Comment author"},
		render.Hint{Token: "%comment_content%", Description: "Comment text"},
		render.Hint{Token: "%post_title%", Description: "Commented post"},
	)
}

// DecodeDetail implements Decoder.
func (*Comment) DecodeDetail(trigger entity.Trigger, raw json.RawMessage) (entity.Detail, error) {
	return decode[entity.CommentDetail](trigger, raw)
}
