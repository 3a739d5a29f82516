package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"nexus/database"
	"nexus/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAppointmentRepo implements AppointmentRepository using MongoDB. It
// also touches the campaigns collection inside the booking transaction.
type MongoAppointmentRepo struct {
	appointmentColl *mongo.Collection
	campaignColl    *mongo.Collection
}

// NewMongoAppointmentRepo constructs a new instance of MongoAppointmentRepo.
func NewMongoAppointmentRepo(client *mongo.Client) *MongoAppointmentRepo {
	db := client.Database(database.DatabaseName)
	return &MongoAppointmentRepo{
		appointmentColl: db.Collection("appointments"),
		campaignColl:    db.Collection("campaigns"),
	}
}

func (repo *MongoAppointmentRepo) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	if err := repo.appointmentColl.FindOne(ctx, bson.M{"id": id}).Decode(&appt); err != nil {
		return nil, fmt.Errorf("error fetching appointment with id %s: %w", id, err)
	}
	return &appt, nil
}

func (repo *MongoAppointmentRepo) FindConfirmed(ctx context.Context, userID, date, timeOfDay string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"user_id":          userID,
		"appointment_date": date,
		"appointment_time": timeOfDay,
		"status":           models.AppointmentConfirmed,
	}
	var appt models.Appointment
	err := repo.appointmentColl.FindOne(ctx, filter).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching confirmed appointment: %w", err)
	}
	return &appt, nil
}

// BookTransactionally is the single durable write of the booking path. The
// appointment insert and the campaign confirmation share one session so a
// failure of either leaves the store untouched.
func (repo *MongoAppointmentRepo) BookTransactionally(ctx context.Context, appointment *models.Appointment) error {
	client := repo.appointmentColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	now := time.Now().UTC()
	appointment.Status = models.AppointmentConfirmed
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	txnFn := func(sc mongo.SessionContext) error {
		if _, err := repo.appointmentColl.InsertOne(sc, appointment); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateSlot
			}
			return fmt.Errorf("insert appointment failed: %w", err)
		}

		// Guarded confirmation: a campaign already in a terminal status must
		// not be confirmed again.
		filter := bson.M{
			"id": appointment.CampaignID,
			"status": bson.M{"$nin": bson.A{
				models.CampaignConfirmed,
				models.CampaignFailed,
				models.CampaignCancelled,
			}},
		}
		update := bson.M{"$set": bson.M{
			"status":                 models.CampaignConfirmed,
			"confirmed_call_task_id": appointment.CallTaskID,
			"updated_at":             now,
		}}
		res, err := repo.campaignColl.UpdateOne(sc, filter, update)
		if err != nil {
			return fmt.Errorf("confirm campaign failed: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrCampaignNotBookable
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		if err == ErrDuplicateSlot || err == ErrCampaignNotBookable {
			return err
		}
		return fmt.Errorf("booking transaction failed: %w", err)
	}
	return nil
}

func (repo *MongoAppointmentRepo) MarkCalendarSynced(ctx context.Context, id, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"google_event_id": eventID,
		"calendar_synced": true,
		"updated_at":      time.Now().UTC(),
	}}
	if _, err := repo.appointmentColl.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error marking appointment %s calendar synced: %w", id, err)
	}
	return nil
}
