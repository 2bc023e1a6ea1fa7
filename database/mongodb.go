package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDBClient struct {
	URI      string
	DBName   string
	Client   *mongo.Client
	Database *mongo.Database
}

// creating a new MongoDbClient using manual parameters
func NewMongoDBClient(uri, dbname string) *MongoDBClient {
	return &MongoDBClient{
		URI:    uri,
		DBName: dbname,
	}
}

// connecting to mongoDB
func (m *MongoDBClient) Connect(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(m.URI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mongodb")
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return errors.Wrap(err, "failed to ping mongodb")
	}

	m.Client = client
	m.Database = client.Database(m.DBName)
	return nil
}

// InsertDocument stores one document and returns its id as text
func (m *MongoDBClient) InsertDocument(ctx context.Context, collection string, document interface{}) (string, error) {
	if m.Database == nil {
		return "", errors.New("mongodb connection not established")
	}

	result, err := m.Database.Collection(collection).InsertOne(ctx, document)
	if err != nil {
		return "", errors.Wrapf(err, "failed to insert into collection %s", collection)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", result.InsertedID), nil
}

// closing the mongodb connection
func (m *MongoDBClient) Close() error {
	if m.Client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.Client.Disconnect(ctx)
	}
	return nil
}
