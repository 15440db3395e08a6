package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	BookingTypes *mongo.Collection
	Appointments *mongo.Collection
	TimeBlocks   *mongo.Collection
	Users        *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		BookingTypes: db.Collection("booking_types"),
		Appointments: db.Collection("appointments"),
		TimeBlocks:   db.Collection("time_blocks"),
		Users:        db.Collection("users"),
	}

	return client, cols, nil
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.BookingTypes.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	// The partial unique index is the storage half of the double-booking
	// guard: only one scheduled appointment may hold a (bookingTypeId,
	// startTime) pair, and cancelled rows free the slot again.
	_, err = cols.Appointments.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "bookingTypeId", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: "scheduled"}}),
		},
		{
			Keys: bson.D{{Key: "bookingTypeId", Value: 1}, {Key: "endTime", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.TimeBlocks.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "bookingTypeId", Value: 1}, {Key: "startTime", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Users.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}
