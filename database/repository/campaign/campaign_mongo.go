package campaignRepo

import (
	"context"
	"fmt"
	"time"

	"nexus/database"
	"nexus/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCampaignRepo implements CampaignRepository using MongoDB.
type MongoCampaignRepo struct {
	coll *mongo.Collection
}

// NewMongoCampaignRepo constructs a new instance of MongoCampaignRepo.
func NewMongoCampaignRepo(client *mongo.Client) *MongoCampaignRepo {
	db := client.Database(database.DatabaseName)
	return &MongoCampaignRepo{
		coll: db.Collection("campaigns"),
	}
}

func (repo *MongoCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	if _, err := repo.coll.InsertOne(ctx, campaign); err != nil {
		return fmt.Errorf("error creating campaign: %w", err)
	}
	return nil
}

func (repo *MongoCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var campaign models.Campaign
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&campaign); err != nil {
		return nil, fmt.Errorf("error fetching campaign with id %s: %w", id, err)
	}
	return &campaign, nil
}

// TransitionStatus is the single mutation path for campaign status. The
// allowed-current guard and the write are one UpdateOne, so two workers
// racing on the same transition cannot both observe the precondition.
func (repo *MongoCampaignRepo) TransitionStatus(ctx context.Context, id string, newStatus models.CampaignStatus, allowedCurrent []models.CampaignStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id}
	if len(allowedCurrent) > 0 {
		filter["status"] = bson.M{"$in": allowedCurrent}
	}
	update := bson.M{"$set": bson.M{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("error transitioning campaign %s to %s: %w", id, newStatus, err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoCampaignRepo) MarkDialing(ctx context.Context, id, serviceType string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":       models.CampaignDialing,
		"service_type": serviceType,
		"updated_at":   time.Now().UTC(),
	}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error marking campaign %s dialing: %w", id, err)
	}
	return nil
}

func (repo *MongoCampaignRepo) FindStale(ctx context.Context, statuses []models.CampaignStatus, before time.Time) ([]models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     bson.M{"$in": statuses},
		"updated_at": bson.M{"$lt": before},
	}
	cursor, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error finding stale campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var stale []models.Campaign
	for cursor.Next(ctx) {
		var c models.Campaign
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("error decoding campaign: %w", err)
		}
		stale = append(stale, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return stale, nil
}

func (repo *MongoCampaignRepo) Touch(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error touching campaign %s: %w", id, err)
	}
	return nil
}
