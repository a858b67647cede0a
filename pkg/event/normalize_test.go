package event

import (
	"testing"
	"time"
)

func normalizeJSON(t *testing.T, eventType, body string) (Record, bool) {
	t.Helper()
	n := NewNormalizer(FixedClock(fixedNow))
	return n.Normalize(eventType, DecodePayload([]byte(body)))
}

// TestNormalizePush tests that a push payload becomes a push record.
func TestNormalizePush(t *testing.T) {
	record, ok := normalizeJSON(t, "push", `{
		"ref": "refs/heads/main",
		"repository": {"name": "repo1", "full_name": "acme/repo1"},
		"pusher": {"name": "alice", "email": "alice@example.com"}
	}`)
	if !ok {
		t.Fatalf("expected push to produce a record")
	}
	if record.Action != ActionPush || record.Author != "alice" || record.Repo != "repo1" || record.ToBranch != "main" {
		t.Fatalf("unexpected push record: %+v", record)
	}
	if record.FromBranch != nil {
		t.Fatalf("expected nil from_branch for push, got %q", *record.FromBranch)
	}
	if !record.Timestamp.Equal(fixedNow) || !record.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected receipt time for push timestamps, got %v / %v", record.Timestamp, record.CreatedAt)
	}
}

func TestNormalizePushDefaults(t *testing.T) {
	record, ok := normalizeJSON(t, "push", `{}`)
	if !ok {
		t.Fatalf("expected push to always produce a record")
	}
	if record.Author != "unknown-user" || record.Repo != "unknown-repo" {
		t.Fatalf("unexpected defaults: %+v", record)
	}
	if record.ToBranch != "" {
		t.Fatalf("expected empty to_branch without ref, got %q", record.ToBranch)
	}

	record, _ = normalizeJSON(t, "push", `{"ref":"refs/tags/v1","repository":null,"pusher":{"name":""}}`)
	if record.ToBranch != "refs/tags/v1" || record.Author != "unknown-user" || record.Repo != "unknown-repo" {
		t.Fatalf("unexpected record for tag push: %+v", record)
	}
}

// TestNormalizePullRequestOpened tests the pull request submission branch.
func TestNormalizePullRequestOpened(t *testing.T) {
	record, ok := normalizeJSON(t, "pull_request", `{
		"action": "opened",
		"repository": {"name": "repo1", "full_name": "acme/repo1"},
		"sender": {"login": "sender"},
		"pull_request": {
			"created_at": "2021-04-01T21:30:00Z",
			"user": {"login": "bob"},
			"base": {"ref": "refs/heads/main"},
			"head": {"ref": "refs/heads/feature"}
		}
	}`)
	if !ok {
		t.Fatalf("expected opened pull request to produce a record")
	}
	if record.Action != ActionPullRequest || record.Author != "bob" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.ToBranch != "main" || record.FromBranchOr("") != "feature" {
		t.Fatalf("unexpected branches: to=%q from=%q", record.ToBranch, record.FromBranchOr(""))
	}
	if record.Repo != "acme/repo1" {
		t.Fatalf("expected full repo name, got %q", record.Repo)
	}
	if want := time.Date(2021, time.April, 1, 21, 30, 0, 0, time.UTC); !record.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %v, got %v", want, record.Timestamp)
	}
	if !record.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected created_at to be receipt time, got %v", record.CreatedAt)
	}
}

func TestNormalizePullRequestSynchronize(t *testing.T) {
	record, ok := normalizeJSON(t, "pull_request", `{
		"action": "synchronize",
		"sender": {"login": "dave"},
		"pull_request": {"created_at": "garbage", "base": {"ref": "develop"}}
	}`)
	if !ok {
		t.Fatalf("expected synchronize to produce a record")
	}
	if record.Action != ActionPullRequest || record.Author != "dave" {
		t.Fatalf("expected sender fallback, got %+v", record)
	}
	if record.ToBranch != "develop" || record.FromBranchOr("") != "unknown" {
		t.Fatalf("unexpected branches: to=%q from=%q", record.ToBranch, record.FromBranchOr(""))
	}
	if record.Repo != "" {
		t.Fatalf("expected empty repo, got %q", record.Repo)
	}
	if !record.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected malformed created_at to fall back to now, got %v", record.Timestamp)
	}
}

// TestNormalizeMerge tests that a closed and merged pull request is classified as a merge.
func TestNormalizeMerge(t *testing.T) {
	record, ok := normalizeJSON(t, "pull_request", `{
		"action": "closed",
		"repository": {"full_name": "acme/repo1"},
		"sender": {"login": "sender"},
		"pull_request": {
			"merged": true,
			"merged_at": "2021-04-02T08:15:00Z",
			"merged_by": {"login": "carol"},
			"user": {"login": "bob"},
			"base": {"ref": "main"},
			"head": {"ref": "refs/heads/feature"}
		}
	}`)
	if !ok {
		t.Fatalf("expected merge to produce a record")
	}
	if record.Action != ActionMerge || record.Author != "carol" {
		t.Fatalf("unexpected merge record: %+v", record)
	}
	if record.ToBranch != "main" || record.FromBranchOr("") != "feature" {
		t.Fatalf("unexpected branches: %+v", record)
	}
	if want := time.Date(2021, time.April, 2, 8, 15, 0, 0, time.UTC); !record.Timestamp.Equal(want) {
		t.Fatalf("expected merged_at timestamp, got %v", record.Timestamp)
	}
}

func TestNormalizeMergeAuthorFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"sender", `{"action":"closed","sender":{"login":"erin"},"pull_request":{"merged":true,"merged_by":null}}`, "erin"},
		{"empty merger", `{"action":"closed","sender":{"login":"erin"},"pull_request":{"merged":true,"merged_by":{"login":""}}}`, "erin"},
		{"unknown", `{"action":"closed","pull_request":{"merged":true}}`, "Unknown"},
	}
	for _, tc := range cases {
		record, ok := normalizeJSON(t, "pull_request", tc.body)
		if !ok {
			t.Fatalf("%s: expected a merge record", tc.name)
		}
		if record.Author != tc.want {
			t.Fatalf("%s: expected author %q, got %q", tc.name, tc.want, record.Author)
		}
		if !record.Timestamp.Equal(fixedNow) {
			t.Fatalf("%s: expected receipt time without merged_at, got %v", tc.name, record.Timestamp)
		}
		if record.ToBranch != "unknown" || record.FromBranchOr("") != "unknown" {
			t.Fatalf("%s: expected unknown branches, got %+v", tc.name, record)
		}
	}
}

// TestNormalizeIgnored tests the inputs that produce no record.
func TestNormalizeIgnored(t *testing.T) {
	cases := []struct {
		eventType string
		body      string
	}{
		{"pull_request", `{"action":"closed","pull_request":{"merged":false}}`},
		{"pull_request", `{"action":"closed"}`},
		{"pull_request", `{"action":"reopened","pull_request":{"merged":true}}`},
		{"pull_request", `{"action":"labeled"}`},
		{"pull_request", `{}`},
		{"pull_request", `not json`},
		{"ping", `{"zen":"Keep it logically awesome."}`},
		{"issues", `{"action":"opened"}`},
		{"", `{}`},
	}
	for _, tc := range cases {
		if record, ok := normalizeJSON(t, tc.eventType, tc.body); ok {
			t.Fatalf("expected %s %s to be ignored, got %+v", tc.eventType, tc.body, record)
		}
	}
}

func TestNormalizeAlwaysValidAction(t *testing.T) {
	bodies := []string{`{}`, `[]`, `null`, `{"action":"opened"}`, `{"action":"closed","pull_request":{"merged":true}}`}
	for _, eventType := range []string{"push", "pull_request"} {
		for _, body := range bodies {
			record, ok := normalizeJSON(t, eventType, body)
			if !ok {
				continue
			}
			if !record.Action.Valid() {
				t.Fatalf("invalid action %q for %s %s", record.Action, eventType, body)
			}
			if record.Author == "" {
				t.Fatalf("empty author for %s %s", eventType, body)
			}
		}
	}
}

// TestNormalizeMistypedFields tests that an unrelated wrong-typed field does
// not erase the rest of the payload.
func TestNormalizeMistypedFields(t *testing.T) {
	record, ok := normalizeJSON(t, "push", `{
		"ref": "refs/heads/main",
		"repository": {"name": "repo1"},
		"pusher": {"name": "alice"},
		"sender": {"login": 42}
	}`)
	if !ok {
		t.Fatalf("expected push to produce a record")
	}
	if record.Author != "alice" || record.Repo != "repo1" || record.ToBranch != "main" {
		t.Fatalf("unexpected push record: %+v", record)
	}

	record, ok = normalizeJSON(t, "pull_request", `{
		"action": "opened",
		"repository": {"full_name": "acme/repo1"},
		"pull_request": {
			"merged_by": "x",
			"created_at": "2021-04-01T21:30:00Z",
			"user": {"login": "bob"},
			"base": {"ref": "main"},
			"head": {"ref": "topic"}
		}
	}`)
	if !ok {
		t.Fatalf("expected opened pull request to produce a record")
	}
	if record.Action != ActionPullRequest || record.Author != "bob" || record.Repo != "acme/repo1" {
		t.Fatalf("unexpected pull request record: %+v", record)
	}
	if record.FromBranch == nil || *record.FromBranch != "topic" || record.ToBranch != "main" {
		t.Fatalf("unexpected branches: %+v", record)
	}
	want := time.Date(2021, 4, 1, 21, 30, 0, 0, time.UTC)
	if !record.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, record.Timestamp)
	}
}
