package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/psivak/filmwiki/internal/types"
)

// MongoExporter writes assembled rows to a MongoDB collection per group
// run, tagged with the group name for querying.
type MongoExporter struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoExporter connects to MongoDB and verifies the connection.
func NewMongoExporter(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoExporter, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoExporter{
		client:     client,
		collection: client.Database(database).Collection("films"),
		logger:     logger.With("component", "mongo_exporter"),
	}, nil
}

func (e *MongoExporter) Name() string { return "mongodb" }

func (e *MongoExporter) Export(ctx context.Context, group string, rows []types.Row) error {
	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Re-runs replace the group's documents wholesale.
	if _, err := e.collection.DeleteMany(writeCtx, bson.M{"group_name": group}); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("delete: %w", err)}
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]any, len(rows))
	for i, row := range rows {
		docs[i] = bson.M{
			"group_name":   group,
			"title":        row.Title,
			"imdb_id":      row.IMDbID,
			"year":         row.Year,
			"summary":      row.Summary,
			"people":       row.People,
			"decade":       row.Decade,
			"people_count": row.PeopleCount,
			"has_summary":  row.HasSummary,
			"language":     row.Language,
			"harvested_at": time.Now(),
		}
	}

	if _, err := e.collection.InsertMany(writeCtx, docs); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	e.logger.Info("mongodb written", "group", group, "rows", len(rows))
	return nil
}

func (e *MongoExporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.client.Disconnect(ctx)
}
