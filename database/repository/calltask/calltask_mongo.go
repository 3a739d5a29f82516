package callTaskRepo

import (
	"context"
	"fmt"
	"time"

	"nexus/database"
	"nexus/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCallTaskRepo implements CallTaskRepository using MongoDB.
type MongoCallTaskRepo struct {
	coll *mongo.Collection
}

// NewMongoCallTaskRepo constructs a new instance of MongoCallTaskRepo.
func NewMongoCallTaskRepo(client *mongo.Client) *MongoCallTaskRepo {
	db := client.Database(database.DatabaseName)
	return &MongoCallTaskRepo{
		coll: db.Collection("call_tasks"),
	}
}

func (repo *MongoCallTaskRepo) CreateMany(ctx context.Context, tasks []models.CallTask) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(tasks))
	for i := range tasks {
		tasks[i].CreatedAt = now
		tasks[i].UpdatedAt = now
		if tasks[i].HoldKeys == nil {
			tasks[i].HoldKeys = []string{}
		}
		docs = append(docs, tasks[i])
	}
	if _, err := repo.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error creating call tasks: %w", err)
	}
	return nil
}

func (repo *MongoCallTaskRepo) GetByID(ctx context.Context, id string) (*models.CallTask, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var task models.CallTask
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&task); err != nil {
		return nil, fmt.Errorf("error fetching call task with id %s: %w", id, err)
	}
	return &task, nil
}

func (repo *MongoCallTaskRepo) GetByCampaign(ctx context.Context, campaignID string) ([]models.CallTask, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := repo.coll.Find(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		return nil, fmt.Errorf("error fetching call tasks for campaign %s: %w", campaignID, err)
	}
	defer cursor.Close(ctx)

	var tasks []models.CallTask
	for cursor.Next(ctx) {
		var t models.CallTask
		if err := cursor.Decode(&t); err != nil {
			return nil, fmt.Errorf("error decoding call task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return tasks, nil
}

func (repo *MongoCallTaskRepo) MarkStarted(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":     models.CallTaskRinging,
		"started_at": now,
		"updated_at": now,
	}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error marking call task %s started: %w", id, err)
	}
	return nil
}

func (repo *MongoCallTaskRepo) UpdateStatus(ctx context.Context, id string, status models.CallTaskStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error updating call task %s status: %w", id, err)
	}
	return nil
}

func (repo *MongoCallTaskRepo) RecordOffer(ctx context.Context, id string, offer models.SlotOffer, score float64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     models.CallTaskSlotOffered,
		"offer":      offer,
		"score":      score,
		"updated_at": time.Now().UTC(),
	}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error recording offer on call task %s: %w", id, err)
	}
	return nil
}

func (repo *MongoCallTaskRepo) AppendHoldKey(ctx context.Context, id, holdKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"hold_keys": holdKey},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error appending hold key to call task %s: %w", id, err)
	}
	return nil
}

func (repo *MongoCallTaskRepo) MarkEnded(ctx context.Context, id string, status models.CallTaskStatus, errorMessage string, endedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"status":     status,
		"ended_at":   endedAt.UTC(),
		"updated_at": time.Now().UTC(),
	}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("error marking call task %s ended: %w", id, err)
	}
	return nil
}
