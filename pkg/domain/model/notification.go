package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/herald/pkg/domain/types"
)

// Notification is the rendered alert for one detected release. Sinks decide
// recipients and transport; subject and body are fixed here so every channel
// announces the same thing.
type Notification struct {
	Source  types.SourceID
	Release ReleaseRecord
}

// NewNotification builds a Notification for a release detected on a source.
func NewNotification(source types.SourceID, release ReleaseRecord) *Notification {
	return &Notification{
		Source:  source,
		Release: release,
	}
}

// Subject returns the one-line summary of the notification.
func (x *Notification) Subject() string {
	return fmt.Sprintf("New release from %s: %s", x.Source, x.Release.Title)
}

// Body returns the plain-text body with title, link and publication time.
func (x *Notification) Body() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s\n\n", x.Release.Title))
	sb.WriteString(fmt.Sprintf("Source: %s\n", x.Source))
	sb.WriteString(fmt.Sprintf("Link: %s\n", x.Release.Link))
	sb.WriteString(fmt.Sprintf("Published: %s\n", x.PublishedLabel()))

	return sb.String()
}

// PublishedLabel formats the publication time for display. Releases without a
// usable timestamp are labeled "unknown" rather than showing the zero time.
func (x *Notification) PublishedLabel() string {
	if x.Release.Published.IsZero() {
		return "unknown"
	}
	return x.Release.Published.Format(time.RFC3339)
}
