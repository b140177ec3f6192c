// Package mongo keeps the whole key space in one MongoDB document so a save
// is a single atomic write.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"posdoctor/internal/domain"
	"posdoctor/internal/store"
)

const (
	Collection = "pos_documents"
	DocumentID = "pos"
)

type entry struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

type record struct {
	ID        string    `bson:"_id"`
	Entries   []entry   `bson:"entries"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Store{
		client:     client,
		collection: client.Database(database).Collection(Collection),
	}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	var rec record
	err := s.collection.FindOne(ctx, bson.M{"_id": DocumentID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: find %s: %v", store.ErrUnavailable, DocumentID, err)
	}

	values := make(map[string][]byte, len(rec.Entries))
	for _, e := range rec.Entries {
		values[e.Key] = []byte(e.Value)
	}
	return store.DecodeKeyspace(values), nil
}

func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	values, err := store.EncodeKeyspace(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	rec := record{ID: DocumentID, Entries: make([]entry, 0, len(values)), UpdatedAt: time.Now().UTC()}
	for key, value := range values {
		rec.Entries = append(rec.Entries, entry{Key: key, Value: string(value)})
	}

	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": DocumentID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: replace %s: %v", store.ErrPersistence, DocumentID, err)
	}
	return nil
}
