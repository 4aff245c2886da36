package state

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

type gcsStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCS creates a state store backed by a Cloud Storage object. Credentials
// come from the environment (application default credentials).
func NewGCS(ctx context.Context, bucket, object string) (interfaces.StateStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GCS client",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", bucket),
		)
	}

	return &gcsStore{
		client: client,
		bucket: bucket,
		object: object,
	}, nil
}

// Load reads the snapshot object. A missing object is a fresh start, not an
// error.
func (s *gcsStore) Load(ctx context.Context) (model.ReleaseState, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return model.ReleaseState{}, nil
		}
		return nil, goerr.Wrap(err, "failed to open state object",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", s.bucket),
			goerr.V("object", s.object),
		)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read state object",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", s.bucket),
			goerr.V("object", s.object),
		)
	}

	state, err := decodeState(data)
	if err != nil {
		return nil, goerr.Wrap(err, "state object is corrupt",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", s.bucket),
			goerr.V("object", s.object),
		)
	}

	return state, nil
}

// Save rewrites the snapshot object. The write commits on Close; GCS object
// replacement is atomic, readers never observe a partial snapshot.
func (s *gcsStore) Save(ctx context.Context, state model.ReleaseState) error {
	data, err := encodeState(state)
	if err != nil {
		return goerr.Wrap(err, "failed to encode state",
			goerr.T(types.ErrTagState),
		)
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write state object",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", s.bucket),
			goerr.V("object", s.object),
		)
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit state object",
			goerr.T(types.ErrTagState),
			goerr.V("bucket", s.bucket),
			goerr.V("object", s.object),
		)
	}

	return nil
}
