package booking

import (
	"context"
	"time"

	"agencydesk-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AppointmentFilter narrows admin listings.
type AppointmentFilter struct {
	BookingTypeID string
	Status        string
	From          time.Time
	To            time.Time
}

// Repository is the storage contract for the booking core. Implementations
// translate their driver errors into this package's sentinels so the state
// machine stays storage-agnostic.
type Repository interface {
	GetTypeBySlug(ctx context.Context, slug string) (BookingType, error)
	GetTypeByID(ctx context.Context, id string) (BookingType, error)
	ListTypes(ctx context.Context) ([]BookingType, error)
	CreateType(ctx context.Context, bt BookingType) error
	UpdateType(ctx context.Context, bt BookingType) error
	DeleteType(ctx context.Context, id string) error

	// BusyIntervals returns the [start,end) ranges of all non-cancelled
	// appointments and time blocks for the booking type intersecting
	// [from, to). excludeAppointmentID skips one appointment (the one being
	// rescheduled).
	BusyIntervals(ctx context.Context, bookingTypeID string, from, to time.Time, excludeAppointmentID string) ([]schedule.Interval, error)

	InsertAppointment(ctx context.Context, appt Appointment) error
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter, limit, offset int64) ([]Appointment, int64, error)
	// CancelAppointment conditionally moves a scheduled appointment to
	// cancelled. Returns ErrAlreadyCancelled when the appointment was no
	// longer scheduled at write time.
	CancelAppointment(ctx context.Context, id string, cancelledAt time.Time, reason string) (Appointment, error)
	// RescheduleAppointment conditionally moves a scheduled appointment from
	// oldStart to the new interval. Any concurrent change, including a lost
	// race on the unique slot index, surfaces as ErrSlotUnavailable.
	RescheduleAppointment(ctx context.Context, id string, oldStart, newStart, newEnd time.Time) (Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, status string) (Appointment, error)

	InsertTimeBlock(ctx context.Context, block TimeBlock) error
	DeleteTimeBlock(ctx context.Context, id string) error
}

type MongoRepository struct {
	types        *mongo.Collection
	appointments *mongo.Collection
	blocks       *mongo.Collection
}

func NewMongoRepository(types, appointments, blocks *mongo.Collection) *MongoRepository {
	return &MongoRepository{
		types:        types,
		appointments: appointments,
		blocks:       blocks,
	}
}

func (r *MongoRepository) GetTypeBySlug(ctx context.Context, slug string) (BookingType, error) {
	var bt BookingType
	if err := r.types.FindOne(ctx, bson.M{"slug": slug, "active": true}).Decode(&bt); err != nil {
		if err == mongo.ErrNoDocuments {
			return BookingType{}, ErrNotFound
		}
		return BookingType{}, err
	}
	return bt, nil
}

func (r *MongoRepository) GetTypeByID(ctx context.Context, id string) (BookingType, error) {
	var bt BookingType
	if err := r.types.FindOne(ctx, bson.M{"_id": id}).Decode(&bt); err != nil {
		if err == mongo.ErrNoDocuments {
			return BookingType{}, ErrNotFound
		}
		return BookingType{}, err
	}
	return bt, nil
}

func (r *MongoRepository) ListTypes(ctx context.Context) ([]BookingType, error) {
	cursor, err := r.types.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]BookingType, 0)
	for cursor.Next(ctx) {
		var bt BookingType
		if err := cursor.Decode(&bt); err != nil {
			return nil, err
		}
		items = append(items, bt)
	}
	return items, cursor.Err()
}

func (r *MongoRepository) CreateType(ctx context.Context, bt BookingType) error {
	_, err := r.types.InsertOne(ctx, bt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateSlug
	}
	return err
}

func (r *MongoRepository) UpdateType(ctx context.Context, bt BookingType) error {
	res, err := r.types.ReplaceOne(ctx, bson.M{"_id": bt.ID}, bt)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteType(ctx context.Context, id string) error {
	res, err := r.types.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) BusyIntervals(ctx context.Context, bookingTypeID string, from, to time.Time, excludeAppointmentID string) ([]schedule.Interval, error) {
	intervals := make([]schedule.Interval, 0)

	query := bson.M{
		"bookingTypeId": bookingTypeID,
		"status":        bson.M{"$ne": StatusCancelled},
		"startTime":     bson.M{"$lt": to},
		"endTime":       bson.M{"$gt": from},
	}
	if excludeAppointmentID != "" {
		query["_id"] = bson.M{"$ne": excludeAppointmentID}
	}

	cursor, err := r.appointments.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			cursor.Close(ctx)
			return nil, err
		}
		intervals = append(intervals, schedule.Interval{Start: appt.StartTime, End: appt.EndTime})
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return nil, err
	}
	cursor.Close(ctx)

	blockQuery := bson.M{
		"$or":       bson.A{bson.M{"bookingTypeId": bookingTypeID}, bson.M{"bookingTypeId": bson.M{"$exists": false}}, bson.M{"bookingTypeId": ""}},
		"startTime": bson.M{"$lt": to},
		"endTime":   bson.M{"$gt": from},
	}
	blockCursor, err := r.blocks.Find(ctx, blockQuery)
	if err != nil {
		return nil, err
	}
	defer blockCursor.Close(ctx)
	for blockCursor.Next(ctx) {
		var block TimeBlock
		if err := blockCursor.Decode(&block); err != nil {
			return nil, err
		}
		intervals = append(intervals, schedule.Interval{Start: block.StartTime, End: block.EndTime})
	}
	return intervals, blockCursor.Err()
}

func (r *MongoRepository) InsertAppointment(ctx context.Context, appt Appointment) error {
	_, err := r.appointments.InsertOne(ctx, appt)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotUnavailable
		}
		return err
	}
	return nil
}

func (r *MongoRepository) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		if err == mongo.ErrNoDocuments {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) ListAppointments(ctx context.Context, filter AppointmentFilter, limit, offset int64) ([]Appointment, int64, error) {
	query := bson.M{}
	if filter.BookingTypeID != "" {
		query["bookingTypeId"] = filter.BookingTypeID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	timeRange := bson.M{}
	if !filter.From.IsZero() {
		timeRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		timeRange["$lt"] = filter.To
	}
	if len(timeRange) > 0 {
		query["startTime"] = timeRange
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startTime", Value: 1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.appointments.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, 0, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.appointments.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *MongoRepository) CancelAppointment(ctx context.Context, id string, cancelledAt time.Time, reason string) (Appointment, error) {
	update := bson.M{"$set": bson.M{
		"status":       StatusCancelled,
		"cancelledAt":  cancelledAt,
		"cancelReason": reason,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var appt Appointment
	err := r.appointments.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": StatusScheduled}, update, opts).Decode(&appt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// The appointment exists but was not scheduled anymore; a
			// concurrent cancel won.
			return Appointment{}, ErrAlreadyCancelled
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) RescheduleAppointment(ctx context.Context, id string, oldStart, newStart, newEnd time.Time) (Appointment, error) {
	update := bson.M{"$set": bson.M{
		"startTime":       newStart,
		"endTime":         newEnd,
		"rescheduledFrom": oldStart,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	filter := bson.M{"_id": id, "status": StatusScheduled, "startTime": oldStart}
	var appt Appointment
	err := r.appointments.FindOneAndUpdate(ctx, filter, update, opts).Decode(&appt)
	if err != nil {
		if err == mongo.ErrNoDocuments || mongo.IsDuplicateKeyError(err) {
			return Appointment{}, ErrSlotUnavailable
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) UpdateAppointmentStatus(ctx context.Context, id, status string) (Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var appt Appointment
	err := r.appointments.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&appt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) InsertTimeBlock(ctx context.Context, block TimeBlock) error {
	_, err := r.blocks.InsertOne(ctx, block)
	return err
}

func (r *MongoRepository) DeleteTimeBlock(ctx context.Context, id string) error {
	res, err := r.blocks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
