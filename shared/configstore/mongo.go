package configstore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfigStore struct {
	client *mongo.Client
	dbName string
}

// NewMongoConfigStore connects lazily; the driver dials on first operation
func NewMongoConfigStore(ctx context.Context, uri, dbName string) (*MongoConfigStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	return &MongoConfigStore{client: client, dbName: dbName}, nil
}

func (m *MongoConfigStore) InsertOne(ctx context.Context, collection string, document interface{}) (interface{}, error) {
	coll := m.client.Database(m.dbName).Collection(collection)
	res, err := coll.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (m *MongoConfigStore) FindMany(ctx context.Context, collection string, filter map[string]interface{}, opts FindOptions, results interface{}) error {
	coll := m.client.Database(m.dbName).Collection(collection)
	cursor, err := coll.Find(ctx, toBSON(filter), findOptions(opts))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

func (m *MongoConfigStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoConfigStore) Close() error {
	return m.client.Disconnect(context.Background())
}

func toBSON(filter map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

func findOptions(opts FindOptions) *options.FindOptions {
	fo := options.Find()
	if opts.SortField != "" {
		order := 1
		if opts.Descending {
			order = -1
		}
		fo.SetSort(bson.D{{Key: opts.SortField, Value: order}})
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	return fo
}
