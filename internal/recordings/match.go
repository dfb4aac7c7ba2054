package recordings

import "github.com/user/parley/pkg/backend"

// MatchKey is the identity heuristic for confirming an optimistic
// recording against the server's version: same name in the same
// folder.
type MatchKey struct {
	Name     string
	FolderID backend.FolderID
}

// KeyOf derives the match key for a recording.
func KeyOf(rec backend.Recording) MatchKey {
	return MatchKey{Name: rec.Name, FolderID: rec.FolderID}
}

// MatchFunc reports whether a server recording confirms an optimistic
// one. Confirmation removes the first optimistic entry, in apply
// order, for which the func returns true.
type MatchFunc func(optimistic, server backend.Recording) bool

// DefaultMatch matches on exact MatchKey equality.
func DefaultMatch(optimistic, server backend.Recording) bool {
	return KeyOf(optimistic) == KeyOf(server)
}
