package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "stazy/internal/bookings/errors"
	"stazy/pkg/config"
	"stazy/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// ReconcileResult reports how a settlement was applied.
type ReconcileResult int

const (
	// Reconciled means the booking now reflects the settlement. A duplicate
	// delivery also reports Reconciled.
	Reconciled ReconcileResult = iota
	// ReconcileSkipped means the booking exists but is in a terminal state.
	ReconcileSkipped
)

// SettlementUpdate carries the payment fields written on reconciliation.
type SettlementUpdate struct {
	SessionID string
	Amount    *int64
	Currency  string
	At        time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context) (int64, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// FindOverlapping returns bookings of hotelID in one of statuses whose
	// stay intersects [checkIn, checkOut).
	FindOverlapping(ctx context.Context, hotelID model.HotelID, checkIn, checkOut time.Time, statuses []model.BookingStatus, limit int) ([]*model.Booking, error)
	Reconcile(ctx context.Context, id string, update SettlementUpdate) (ReconcileResult, error)
	UpdateStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (*model.Booking, error)
	FindUnpublished(ctx context.Context, olderThan time.Time, maxAttempts int, limit int) ([]*model.Booking, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkPublishFailed(ctx context.Context, id string, cause string) error
	Ping(ctx context.Context) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds ctx by timeout without extending an earlier deadline.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func statusValues(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count user bookings: %w", err)
	}
	return count, nil
}

// overlapFilter selects stays intersecting the half-open [checkIn, checkOut).
// Back-to-back stays share only a boundary and are not matched.
func overlapFilter(hotelID model.HotelID, checkIn, checkOut time.Time, statuses []model.BookingStatus) bson.M {
	return bson.M{
		"hotel_id":  hotelID,
		"status":    bson.M{"$in": statusValues(statuses)},
		"check_in":  bson.M{"$lt": checkOut},
		"check_out": bson.M{"$gt": checkIn},
	}
}

func (r *mongoBookingRepository) FindOverlapping(
	ctx context.Context,
	hotelID model.HotelID,
	checkIn, checkOut time.Time,
	statuses []model.BookingStatus,
	limit int,
) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "check_in", Value: 1}}).
		SetLimit(int64(limit))

	bookings, err := r.find(ctx, overlapFilter(hotelID, checkIn, checkOut, statuses), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return bookings, nil
}

// Reconcile applies a settlement with one conditional update keyed by id.
// Replaying the same settlement sets the same values again; reconciled_at
// keeps the earliest time.
func (r *mongoBookingRepository) Reconcile(ctx context.Context, id string, update SettlementUpdate) (ReconcileResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return 0, err
	}

	set := bson.M{
		"status":                      model.StatusConfirmed,
		"payment.status":              model.PaymentStatusPaid,
		"payment.external_session_id": update.SessionID,
		"updated_at":                  update.At,
	}
	if update.Amount != nil {
		set["payment.amount"] = *update.Amount
	}
	if update.Currency != "" {
		set["payment.currency"] = update.Currency
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": statusValues(model.ReconcilableStatuses)},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": set,
		"$min": bson.M{"payment.reconciled_at": update.At},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile booking: %w", err)
	}
	if result.MatchedCount > 0 {
		return Reconciled, nil
	}

	// Nothing matched: the booking is either not visible yet or terminal.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return 0, fmt.Errorf("failed to check booking existence: %w", err)
	}
	if n == 0 {
		return 0, bookingserrors.ErrNotFound
	}
	return ReconcileSkipped, nil
}

// UpdateStatus moves a booking to status to only if its current status is
// one of from, returning the updated document.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": statusValues(from)},
	}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to check booking existence: %w", err)
	}
	if n == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return nil, bookingserrors.ErrStateConflict
}

func (r *mongoBookingRepository) FindUnpublished(ctx context.Context, olderThan time.Time, maxAttempts int, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"notification.published": false,
		"notification.attempts":  bson.M{"$lt": maxAttempts},
		"created_at":             bson.M{"$lte": olderThan},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$set":   bson.M{"notification.published": true, "notification.published_at": at},
			"$inc":   bson.M{"notification.attempts": 1},
			"$unset": bson.M{"notification.last_error": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to mark booking notification published: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) MarkPublishFailed(ctx context.Context, id string, cause string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "notification.published": false},
		bson.M{
			"$set": bson.M{"notification.last_error": cause},
			"$inc": bson.M{"notification.attempts": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record booking notification failure: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.db.Client().Ping(ctx, nil)
}
