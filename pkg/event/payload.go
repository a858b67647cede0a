package event

import (
	"encoding/json"
	"errors"
)

// Payload is the subset of a GitHub push or pull_request body consumed by
// the normalizer. Every field is optional; use the Get accessors, which are
// safe on nil receivers and return the zero value for absent fields.
type Payload struct {
	Action      *string      `json:"action,omitempty"`
	Ref         *string      `json:"ref,omitempty"`
	Repository  *Repository  `json:"repository,omitempty"`
	Pusher      *Pusher      `json:"pusher,omitempty"`
	Sender      *Account     `json:"sender,omitempty"`
	PullRequest *PullRequest `json:"pull_request,omitempty"`
}

// Repository identifies the repository an event belongs to.
type Repository struct {
	Name     *string `json:"name,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// Pusher is the committer identity attached to push events.
type Pusher struct {
	Name *string `json:"name,omitempty"`
}

// Account is a platform user (sender, PR author, merger).
type Account struct {
	Login *string `json:"login,omitempty"`
}

// PullRequest carries the pull_request object of a pull_request event.
type PullRequest struct {
	Merged    *bool      `json:"merged,omitempty"`
	MergedAt  *string    `json:"merged_at,omitempty"`
	CreatedAt *string    `json:"created_at,omitempty"`
	MergedBy  *Account   `json:"merged_by,omitempty"`
	User      *Account   `json:"user,omitempty"`
	Base      *BranchRef `json:"base,omitempty"`
	Head      *BranchRef `json:"head,omitempty"`
}

// BranchRef is the base or head side of a pull request.
type BranchRef struct {
	Ref *string `json:"ref,omitempty"`
}

// DecodePayload decodes raw into a Payload. Bodies that are not valid JSON
// decode to an empty payload. A value of the wrong type only drops that
// field: encoding/json skips it, keeps decoding the rest and reports an
// *json.UnmarshalTypeError, which is discarded here.
func DecodePayload(raw []byte) *Payload {
	var p Payload
	if len(raw) == 0 {
		return &p
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &p
		}
		return &Payload{}
	}
	return &p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *Payload) GetAction() string {
	if p == nil {
		return ""
	}
	return deref(p.Action)
}

func (p *Payload) GetRef() string {
	if p == nil {
		return ""
	}
	return deref(p.Ref)
}

func (p *Payload) GetRepository() *Repository {
	if p == nil {
		return nil
	}
	return p.Repository
}

func (p *Payload) GetPusher() *Pusher {
	if p == nil {
		return nil
	}
	return p.Pusher
}

func (p *Payload) GetSender() *Account {
	if p == nil {
		return nil
	}
	return p.Sender
}

func (p *Payload) GetPullRequest() *PullRequest {
	if p == nil {
		return nil
	}
	return p.PullRequest
}

func (r *Repository) GetName() string {
	if r == nil {
		return ""
	}
	return deref(r.Name)
}

func (r *Repository) GetFullName() string {
	if r == nil {
		return ""
	}
	return deref(r.FullName)
}

func (p *Pusher) GetName() string {
	if p == nil {
		return ""
	}
	return deref(p.Name)
}

func (a *Account) GetLogin() string {
	if a == nil {
		return ""
	}
	return deref(a.Login)
}

func (pr *PullRequest) GetMerged() bool {
	if pr == nil || pr.Merged == nil {
		return false
	}
	return *pr.Merged
}

func (pr *PullRequest) GetMergedAt() string {
	if pr == nil {
		return ""
	}
	return deref(pr.MergedAt)
}

func (pr *PullRequest) GetCreatedAt() string {
	if pr == nil {
		return ""
	}
	return deref(pr.CreatedAt)
}

func (pr *PullRequest) GetMergedBy() *Account {
	if pr == nil {
		return nil
	}
	return pr.MergedBy
}

func (pr *PullRequest) GetUser() *Account {
	if pr == nil {
		return nil
	}
	return pr.User
}

func (pr *PullRequest) GetBase() *BranchRef {
	if pr == nil {
		return nil
	}
	return pr.Base
}

func (pr *PullRequest) GetHead() *BranchRef {
	if pr == nil {
		return nil
	}
	return pr.Head
}

func (b *BranchRef) GetRef() string {
	if b == nil {
		return ""
	}
	return deref(b.Ref)
}
