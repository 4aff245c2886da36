package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

type fileStore struct {
	path string
}

// NewFile creates a state store backed by a local JSON file.
func NewFile(path string) interfaces.StateStore {
	return &fileStore{path: path}
}

// Load reads the snapshot. A missing file is a fresh start, not an error;
// unreadable or malformed content is a state error.
func (s *fileStore) Load(ctx context.Context) (model.ReleaseState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.ReleaseState{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read state file",
			goerr.T(types.ErrTagState),
			goerr.V("path", s.path),
		)
	}

	state, err := decodeState(data)
	if err != nil {
		return nil, goerr.Wrap(err, "state file is corrupt",
			goerr.T(types.ErrTagState),
			goerr.V("path", s.path),
		)
	}

	return state, nil
}

// Save writes the whole snapshot: parents are created as needed and the file
// is replaced via temp-file-and-rename so a crash mid-write never leaves a
// truncated store behind.
func (s *fileStore) Save(ctx context.Context, state model.ReleaseState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create state directory",
			goerr.T(types.ErrTagState),
			goerr.V("dir", dir),
		)
	}

	data, err := encodeState(state)
	if err != nil {
		return goerr.Wrap(err, "failed to encode state",
			goerr.T(types.ErrTagState),
		)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary state file",
			goerr.T(types.ErrTagState),
			goerr.V("dir", dir),
		)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to write state file",
			goerr.T(types.ErrTagState),
			goerr.V("path", tmp.Name()),
		)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to close state file",
			goerr.T(types.ErrTagState),
			goerr.V("path", tmp.Name()),
		)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to replace state file",
			goerr.T(types.ErrTagState),
			goerr.V("path", s.path),
		)
	}

	return nil
}
