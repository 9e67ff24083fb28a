package implementation

import (
	"context"
	"fmt"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoReportRepository keeps input report history in a MongoDB collection.
type MongoReportRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoReportRepository(coll *mongo.Collection, timeout time.Duration) *MongoReportRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoReportRepository{coll: coll, timeout: timeout}
}

// EnsureIndexes creates the index backing Latest and Count.
func (r *MongoReportRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "received_at", Value: -1}},
	})
	return err
}

func (r *MongoReportRepository) Insert(ctx context.Context, report *panel_models.InputReport) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, report)
	return err
}

func (r *MongoReportRepository) Latest(ctx context.Context, projectID int64, limit int) ([]panel_models.InputReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	reports := make([]panel_models.InputReport, 0)
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return reports, nil
}

func (r *MongoReportRepository) Count(ctx context.Context, projectID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.coll.CountDocuments(ctx, bson.M{"project_id": projectID})
}
