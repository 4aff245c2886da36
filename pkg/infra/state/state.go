// Package state persists the last-known release per tracked source. The
// snapshot is a JSON object keyed by source ID; Save(Load(x)) reproduces x
// for any previously saved x. Backends share that contract and differ only
// in where the snapshot lives.
package state

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

const (
	schemeGCS       = "gs://"
	schemeFirestore = "firestore://"
)

// New returns the state store for a location string:
//
//	./state.json                    local file
//	gs://bucket/path/state.json     Cloud Storage object
//	firestore://project/collection  Firestore collection, one doc per source
//
// An unusable location is a configuration error.
func New(ctx context.Context, location string) (interfaces.StateStore, error) {
	switch {
	case location == "":
		return nil, goerr.New("state location is empty", goerr.T(types.ErrTagConfig))

	case strings.HasPrefix(location, schemeGCS):
		bucket, object, ok := splitLocation(strings.TrimPrefix(location, schemeGCS))
		if !ok {
			return nil, goerr.New("GCS state location must be gs://bucket/object",
				goerr.T(types.ErrTagConfig),
				goerr.V("location", location),
			)
		}
		return NewGCS(ctx, bucket, object)

	case strings.HasPrefix(location, schemeFirestore):
		project, collection, ok := splitLocation(strings.TrimPrefix(location, schemeFirestore))
		if !ok || strings.Contains(collection, "/") {
			return nil, goerr.New("Firestore state location must be firestore://project/collection",
				goerr.T(types.ErrTagConfig),
				goerr.V("location", location),
			)
		}
		return NewFirestore(ctx, project, collection)

	default:
		if scheme, _, found := strings.Cut(location, "://"); found {
			return nil, goerr.New("unsupported state location scheme",
				goerr.T(types.ErrTagConfig),
				goerr.V("scheme", scheme),
				goerr.V("location", location),
			)
		}
		return NewFile(location), nil
	}
}

// splitLocation cuts "head/rest" into its two parts; both must be non-empty.
func splitLocation(s string) (string, string, bool) {
	head, rest, found := strings.Cut(s, "/")
	if !found || head == "" || rest == "" {
		return "", "", false
	}
	return head, rest, true
}

// encodeState renders the snapshot as indented JSON so the state file stays
// inspectable by hand.
func encodeState(state model.ReleaseState) ([]byte, error) {
	return json.MarshalIndent(state, "", "  ")
}

// decodeState parses a persisted snapshot. A nil map never escapes: an empty
// document yields an empty, usable state.
func decodeState(data []byte) (model.ReleaseState, error) {
	var state model.ReleaseState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = model.ReleaseState{}
	}
	return state, nil
}
