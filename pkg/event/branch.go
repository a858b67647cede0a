package event

import "strings"

const (
	headsPrefix   = "refs/heads/"
	unknownBranch = "unknown"
)

// ResolveBranch turns a ref such as refs/heads/main into a branch name.
// An empty ref resolves to "unknown"; refs outside refs/heads/ are kept as is.
func ResolveBranch(ref string) string {
	if ref == "" {
		return unknownBranch
	}
	return strings.TrimPrefix(ref, headsPrefix)
}
