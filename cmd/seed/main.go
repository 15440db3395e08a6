package main

import (
	"context"
	"log"
	"os"
	"time"

	"agencydesk-backend/internal/auth"
	"agencydesk-backend/internal/booking"
	"agencydesk-backend/internal/config"
	"agencydesk-backend/internal/db"
	"agencydesk-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedType struct {
	Name            string
	Description     string
	DurationMinutes int
	BufferMinutes   int
	Availability    map[string][]booking.WindowConfig
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	weekdays := map[string][]booking.WindowConfig{
		"monday":    {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "17:00"}},
		"tuesday":   {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "17:00"}},
		"wednesday": {{Start: "09:00", End: "12:00"}},
		"thursday":  {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "17:00"}},
		"friday":    {{Start: "09:00", End: "12:00"}},
	}

	types := []seedType{
		{Name: "Discovery call", Description: "A first conversation to understand your project.", DurationMinutes: 30, Availability: weekdays},
		{Name: "Strategy session", Description: "A working session on positioning and roadmap.", DurationMinutes: 60, BufferMinutes: 15, Availability: weekdays},
		{Name: "Portfolio review", Description: "A detailed review of your current assets.", DurationMinutes: 45, Availability: weekdays},
	}

	zone := "UTC"
	if cfg.Timezone != nil {
		zone = cfg.Timezone.String()
	}

	for _, bt := range types {
		slug := utils.Slugify(bt.Name)
		filter := bson.M{"slug": slug}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":             primitive.NewObjectID().Hex(),
				"name":            bt.Name,
				"slug":            slug,
				"description":     bt.Description,
				"durationMinutes": bt.DurationMinutes,
				"bufferMinutes":   bt.BufferMinutes,
				"timezone":        zone,
				"availability":    bt.Availability,
				"hostName":        cfg.AgencyName,
				"active":          true,
				"createdAt":       time.Now().UTC(),
			},
		}

		_, err := cols.BookingTypes.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			log.Fatalf("seed error for %s: %v", bt.Name, err)
		}
	}

	username := envOrDefault("ADMIN_USER", "admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Printf("seed admin: ADMIN_PASSWORD missing, skipping %s", username)
	} else if err := seedAdminUser(ctx, cols, username, os.Getenv("ADMIN_EMAIL"), password); err != nil {
		log.Fatalf("seed admin error for %s: %v", username, err)
	}

	log.Println("seed completed")
}

func seedAdminUser(ctx context.Context, cols *db.Collections, username, email, password string) error {
	if cols == nil || cols.Users == nil {
		return nil
	}
	if username == "" || password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	filter := bson.M{"username": username}
	set := bson.M{
		"passwordHash": hash,
		"role":         "admin",
		"updatedAt":    now,
	}
	if email != "" {
		set["email"] = email
	}
	setOnInsert := bson.M{
		"_id":       primitive.NewObjectID().Hex(),
		"username":  username,
		"createdAt": now,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": setOnInsert,
	}
	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
