package model

import (
	"regexp"

	"github.com/m-mizutani/herald/pkg/domain/types"
)

// TrackedSource is one watched feed-producing entity. The filter, when
// present, is compiled once at configuration load; an invalid pattern is a
// configuration error, never a runtime failure.
type TrackedSource struct {
	ID     types.SourceID // Opaque source key, e.g. "golang/go"
	URL    string         // Resolved feed URL for this source
	Filter *regexp.Regexp // Optional notification filter; nil notifies on every new release
}

// WantsNotification reports whether a release with the given title should
// trigger delivery. The filter is tested against the title only.
func (x *TrackedSource) WantsNotification(title string) bool {
	if x.Filter == nil {
		return true
	}
	return x.Filter.MatchString(title)
}
