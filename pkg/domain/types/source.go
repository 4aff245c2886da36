package types

// SourceID identifies a tracked source. It is an opaque key chosen by the
// user, conventionally "owner/repo" for GitHub release feeds.
type SourceID string

// String returns the raw source key.
func (x SourceID) String() string { return string(x) }
