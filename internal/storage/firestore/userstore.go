package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// Defaults matching the user documents written by the client apps.
const (
	DefaultCollection = "users"
	DefaultTokenField = "oneSignalPlayerId"
)

// UserStore implements dispatch.UserDirectory over a Firestore collection.
// It only reads; user documents are owned by the client applications.
type UserStore struct {
	client     *firestore.Client
	collection string
	tokenField string
}

// NewUserStore creates a store reading collection and extracting tokenField.
// Empty names fall back to the defaults.
func NewUserStore(client *firestore.Client, collection, tokenField string) *UserStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if tokenField == "" {
		tokenField = DefaultTokenField
	}
	return &UserStore{
		client:     client,
		collection: collection,
		tokenField: tokenField,
	}
}

// Get returns the user document with the given id, or nil if it does not exist.
func (s *UserStore) Get(ctx context.Context, id string) (*notification.UserRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore get %s/%s failed: %w", s.collection, id, err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	record := s.toRecord(snap)
	return &record, nil
}

// All returns every document in the collection.
func (s *UserStore) All(ctx context.Context) ([]notification.UserRecord, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var records []notification.UserRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		records = append(records, s.toRecord(snap))
	}
	return records, nil
}

// toRecord extracts the device token. Non-string token values are ignored.
func (s *UserStore) toRecord(snap *firestore.DocumentSnapshot) notification.UserRecord {
	record := notification.UserRecord{ID: snap.Ref.ID}
	if token, ok := snap.Data()[s.tokenField].(string); ok {
		record.DeviceToken = token
	}
	return record
}
