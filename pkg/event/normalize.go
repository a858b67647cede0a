package event

import (
	"strings"
	"time"

	ghhooks "github.com/go-playground/webhooks/v6/github"
)

const (
	unknownRepo     = "unknown-repo"
	unknownPusher   = "unknown-user"
	unknownPRAuthor = "Unknown"
)

// Normalizer maps GitHub webhook payloads to canonical records.
type Normalizer struct {
	clock Clock
}

// NewNormalizer returns a Normalizer reading time from clock.
// A nil clock uses the system time.
func NewNormalizer(clock Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Clock returns the clock used for receipt times and timestamp fallbacks.
func (n *Normalizer) Clock() Clock {
	return n.clock
}

// Normalize classifies a webhook payload. The boolean is false when the
// event is understood but not stored (ping, unhandled types and actions).
func (n *Normalizer) Normalize(eventType string, p *Payload) (Record, bool) {
	switch ghhooks.Event(eventType) {
	case ghhooks.PushEvent:
		return n.push(p), true
	case ghhooks.PullRequestEvent:
		return n.pullRequest(p)
	default:
		return Record{}, false
	}
}

// push events carry no usable event time, so timestamp is receipt time.
func (n *Normalizer) push(p *Payload) Record {
	return Record{
		Action:    ActionPush,
		Author:    firstNonEmpty(p.GetPusher().GetName(), unknownPusher),
		Repo:      firstNonEmpty(p.GetRepository().GetName(), unknownRepo),
		ToBranch:  strings.TrimPrefix(p.GetRef(), headsPrefix),
		Timestamp: n.clock.Now(),
		CreatedAt: n.clock.Now(),
	}
}

func (n *Normalizer) pullRequest(p *Payload) (Record, bool) {
	pr := p.GetPullRequest()

	var (
		action    Action
		author    string
		timestamp time.Time
	)
	switch a := p.GetAction(); {
	case a == "closed" && pr.GetMerged():
		action = ActionMerge
		author = firstNonEmpty(pr.GetMergedBy().GetLogin(), p.GetSender().GetLogin(), unknownPRAuthor)
		if mergedAt := pr.GetMergedAt(); mergedAt != "" {
			timestamp = n.clock.ParseTimestamp(mergedAt)
		} else {
			timestamp = n.clock.Now()
		}
	case a == "opened" || a == "synchronize":
		action = ActionPullRequest
		author = firstNonEmpty(pr.GetUser().GetLogin(), p.GetSender().GetLogin(), unknownPRAuthor)
		timestamp = n.clock.ParseTimestamp(pr.GetCreatedAt())
	default:
		return Record{}, false
	}

	from := ResolveBranch(pr.GetHead().GetRef())
	return Record{
		Action:     action,
		Author:     author,
		Repo:       p.GetRepository().GetFullName(),
		FromBranch: &from,
		ToBranch:   ResolveBranch(pr.GetBase().GetRef()),
		Timestamp:  timestamp,
		CreatedAt:  n.clock.Now(),
	}, true
}
