package state

import (
	"context"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

type firestoreStore struct {
	client     *firestore.Client
	collection string
}

// releaseDoc is the Firestore document per source. The raw source ID is kept
// as a field because document IDs cannot contain "/" and are stored escaped.
type releaseDoc struct {
	Source  string              `firestore:"source"`
	Release model.ReleaseRecord `firestore:"release"`
}

// NewFirestore creates a state store backed by a Firestore collection with
// one document per tracked source. Credentials come from the environment.
func NewFirestore(ctx context.Context, projectID, collection string) (interfaces.StateStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.T(types.ErrTagState),
			goerr.V("project", projectID),
		)
	}

	return &firestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

// Load reads every document of the collection. An empty or missing
// collection is a fresh start.
func (s *firestoreStore) Load(ctx context.Context) (model.ReleaseState, error) {
	state := model.ReleaseState{}

	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read state collection",
				goerr.T(types.ErrTagState),
				goerr.V("collection", s.collection),
			)
		}

		var rd releaseDoc
		if err := doc.DataTo(&rd); err != nil {
			return nil, goerr.Wrap(err, "state document is corrupt",
				goerr.T(types.ErrTagState),
				goerr.V("collection", s.collection),
				goerr.V("doc", doc.Ref.ID),
			)
		}

		state[types.SourceID(rd.Source)] = rd.Release
	}

	return state, nil
}

// Save writes every entry through a BulkWriter and waits for all writes
// before returning, so the snapshot is fully committed or the run fails.
func (s *firestoreStore) Save(ctx context.Context, state model.ReleaseState) error {
	bw := s.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(state))
	for id, rec := range state {
		ref := s.client.Collection(s.collection).Doc(docID(id))
		job, err := bw.Set(ref, releaseDoc{Source: id.String(), Release: rec})
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue state write",
				goerr.T(types.ErrTagState),
				goerr.V("collection", s.collection),
				goerr.V("source", id),
			)
		}
		jobs = append(jobs, job)
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write state document",
				goerr.T(types.ErrTagState),
				goerr.V("collection", s.collection),
			)
		}
	}

	return nil
}

// docID escapes a source ID for use as a Firestore document ID.
func docID(id types.SourceID) string {
	return url.PathEscape(id.String())
}
