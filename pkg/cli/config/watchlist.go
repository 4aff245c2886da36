package config

import (
	"bytes"
	"cmp"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
	"github.com/m-mizutani/herald/pkg/infra/mail"
	"github.com/m-mizutani/herald/pkg/infra/slack"
)

// DefaultFeedURLTemplate resolves a bare source ID to its GitHub releases
// feed. Sources living elsewhere set an explicit url instead.
const DefaultFeedURLTemplate = "https://github.com/{source}/releases.atom"

const (
	sourcePlaceholder   = "{source}"
	defaultFetchTimeout = 30 * time.Second
)

// Source is one watch list entry. Pattern, when set, must match a release
// title for a notification to go out; detection itself is unconditional.
type Source struct {
	Pattern string `yaml:"pattern" toml:"pattern"`
	URL     string `yaml:"url" toml:"url"`
}

// WatchList is the decoded watch list file.
type WatchList struct {
	State           string            `yaml:"state" toml:"state"`
	Timeout         string            `yaml:"timeout" toml:"timeout"`
	Concurrency     int               `yaml:"concurrency" toml:"concurrency"`
	FeedURLTemplate string            `yaml:"feed_url_template" toml:"feed_url_template"`
	Sources         map[string]Source `yaml:"sources" toml:"sources"`
	SMTP            *mail.Config      `yaml:"smtp" toml:"smtp"`
	Slack           *slack.Config     `yaml:"slack" toml:"slack"`

	tracked []model.TrackedSource
	timeout time.Duration
}

// LoadWatchList reads and decodes a watch list file, picking the format by
// extension. The decode is strict: unknown keys are rejected so a typo does
// not silently drop a setting. The result is not yet validated; call
// Validate after applying any flag overrides.
func LoadWatchList(path string) (*WatchList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read watch list",
			goerr.T(types.ErrTagConfig),
			goerr.V("path", path),
		)
	}

	var wl WatchList
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&wl); err != nil && !errors.Is(err, io.EOF) {
			return nil, goerr.Wrap(err, "failed to parse watch list",
				goerr.T(types.ErrTagConfig),
				goerr.V("path", path),
			)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wl); err != nil {
			return nil, goerr.Wrap(err, "failed to parse watch list",
				goerr.T(types.ErrTagConfig),
				goerr.V("path", path),
			)
		}
	default:
		return nil, goerr.New("unsupported watch list format",
			goerr.T(types.ErrTagConfig),
			goerr.V("path", path),
			goerr.V("ext", ext),
		)
	}

	return &wl, nil
}

// Validate checks the watch list and compiles the values a pass derives from
// it. It must succeed before Tracked or FetchTimeout are used. All
// violations here abort the run before any network or state I/O.
func (x *WatchList) Validate() error {
	if x.State == "" {
		return goerr.New("state location is required", goerr.T(types.ErrTagConfig))
	}
	if len(x.Sources) == 0 {
		return goerr.New("no sources configured", goerr.T(types.ErrTagConfig))
	}
	if x.Concurrency < 0 {
		return goerr.New("concurrency must not be negative",
			goerr.T(types.ErrTagConfig),
			goerr.V("concurrency", x.Concurrency),
		)
	}

	timeout := defaultFetchTimeout
	if x.Timeout != "" {
		d, err := time.ParseDuration(x.Timeout)
		if err != nil {
			return goerr.Wrap(err, "invalid timeout",
				goerr.T(types.ErrTagConfig),
				goerr.V("timeout", x.Timeout),
			)
		}
		if d <= 0 {
			return goerr.New("timeout must be positive",
				goerr.T(types.ErrTagConfig),
				goerr.V("timeout", x.Timeout),
			)
		}
		timeout = d
	}

	template := x.FeedURLTemplate
	if template == "" {
		template = DefaultFeedURLTemplate
	}

	tracked := make([]model.TrackedSource, 0, len(x.Sources))
	for id, src := range x.Sources {
		if id == "" {
			return goerr.New("source id must not be empty", goerr.T(types.ErrTagConfig))
		}

		feedURL := src.URL
		if feedURL == "" {
			if !strings.Contains(template, sourcePlaceholder) {
				return goerr.New("feed_url_template has no {source} placeholder",
					goerr.T(types.ErrTagConfig),
					goerr.V("template", template),
				)
			}
			feedURL = strings.ReplaceAll(template, sourcePlaceholder, id)
		}

		ts := model.TrackedSource{ID: types.SourceID(id), URL: feedURL}
		if src.Pattern != "" {
			re, err := regexp.Compile(src.Pattern)
			if err != nil {
				return goerr.Wrap(err, "invalid notification pattern",
					goerr.T(types.ErrTagConfig),
					goerr.V("source", id),
					goerr.V("pattern", src.Pattern),
				)
			}
			ts.Filter = re
		}
		tracked = append(tracked, ts)
	}
	sortSources(tracked)

	if x.SMTP != nil {
		if err := x.SMTP.Validate(); err != nil {
			return err
		}
	}
	if x.Slack != nil {
		if err := x.Slack.Validate(); err != nil {
			return err
		}
	}

	x.tracked = tracked
	x.timeout = timeout
	return nil
}

// Tracked returns the validated sources sorted by ID.
func (x *WatchList) Tracked() []model.TrackedSource {
	return x.tracked
}

// FetchTimeout returns the per-source fetch bound.
func (x *WatchList) FetchTimeout() time.Duration {
	return x.timeout
}

// Narrow restricts the tracked sources to the named subset. A name that is
// not in the watch list is a config error so a typo does not silently skip
// a source. Repeated names collapse to one.
func (x *WatchList) Narrow(names []string) error {
	if len(names) == 0 {
		return nil
	}

	byID := make(map[types.SourceID]model.TrackedSource, len(x.tracked))
	for _, ts := range x.tracked {
		byID[ts.ID] = ts
	}

	seen := make(map[types.SourceID]bool, len(names))
	subset := make([]model.TrackedSource, 0, len(names))
	for _, name := range names {
		id := types.SourceID(name)
		ts, ok := byID[id]
		if !ok {
			return goerr.New("unknown source",
				goerr.T(types.ErrTagConfig),
				goerr.V("source", name),
			)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		subset = append(subset, ts)
	}
	sortSources(subset)

	x.tracked = subset
	return nil
}

func sortSources(sources []model.TrackedSource) {
	slices.SortFunc(sources, func(a, b model.TrackedSource) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
