// Package firestore provides a Cloud Firestore implementation of the
// storage.Store interface, using the document layout of the original web
// client: a "habits" collection and a "streaks" collection keyed
// habitId_userId.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mmynk/habitly/internal/storage"
)

// Ensure FirestoreStore implements storage.Store
var _ storage.Store = (*FirestoreStore)(nil)

// Config selects the Firebase project and collections.
type Config struct {
	ProjectID string
	// CredentialsFile is a service account JSON file. Empty uses application
	// default credentials, or the emulator when FIRESTORE_EMULATOR_HOST is set.
	CredentialsFile string
	// CollectionPrefix is prepended to collection names, to share a project
	// between environments.
	CollectionPrefix string
}

// FirestoreStore implements storage.Store on Cloud Firestore.
type FirestoreStore struct {
	client  *firestore.Client
	habits  string
	streaks string
}

// New initializes a Firebase app for cfg and opens its Firestore client.
func New(ctx context.Context, cfg Config) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return NewWithClient(client, cfg.CollectionPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, prefix string) *FirestoreStore {
	return &FirestoreStore{
		client:  client,
		habits:  prefix + "habits",
		streaks: prefix + "streaks",
	}
}

// Ping reads a non-existent document to check connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection(s.habits).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close closes the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) habitRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.habits).Doc(id)
}

func (s *FirestoreStore) streakRef(habitID, userID string) *firestore.DocumentRef {
	return s.client.Collection(s.streaks).Doc(habitID + "_" + userID)
}

// runTx runs fn in a single-attempt transaction. Contention is reported as
// storage.ErrConflict so retries stay with the caller.
func (s *FirestoreStore) runTx(ctx context.Context, fn func(ctx context.Context, tx *firestore.Transaction) error) error {
	err := s.client.RunTransaction(ctx, fn, firestore.MaxAttempts(1))
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrInviteCodeTaken) {
		return err
	}
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
