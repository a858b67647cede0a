package event

import "time"

// Action is the canonical classification of a stored event.
type Action string

const (
	ActionPush        Action = "push"
	ActionPullRequest Action = "pull_request"
	ActionMerge       Action = "merge"
)

// Valid reports whether a is one of the stored actions.
func (a Action) Valid() bool {
	switch a {
	case ActionPush, ActionPullRequest, ActionMerge:
		return true
	default:
		return false
	}
}

// Record is the normalized, storage-ready form of an inbound event.
type Record struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	Author     string    `json:"author"`
	Repo       string    `json:"repo"`
	FromBranch *string   `json:"from_branch"`
	ToBranch   string    `json:"to_branch"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromBranchOr returns the source branch or def for push records.
func (r Record) FromBranchOr(def string) string {
	if r.FromBranch == nil {
		return def
	}
	return *r.FromBranch
}

// Fields exposes the record as a flat map for rule evaluation.
func (r Record) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"action":      string(r.Action),
		"author":      r.Author,
		"repo":        r.Repo,
		"from_branch": r.FromBranchOr(""),
		"to_branch":   r.ToBranch,
	}
}
