package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/cropcare/backend/internal/models"
)

// Collection names.
const (
	UsersCollection    = "users"
	ProfilesCollection = "profiles"
	ReportsCollection  = "shareable_reports"
)

// reportPurgeGrace keeps expired reports around long enough to answer 410
// before the TTL monitor removes them.
const reportPurgeGrace = 7 * 24 * time.Hour

// MongoStore handles users, profiles and shared reports in MongoDB.
type MongoStore struct {
	users    *mongo.Collection
	profiles *mongo.Collection
	reports  *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:    db.Collection(UsersCollection),
		profiles: db.Collection(ProfilesCollection),
		reports:  db.Collection(ReportsCollection),
		now:      time.Now,
	}
}

// EnsureIndexes creates the unique and TTL indexes the stores rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email_verification_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "reset_password_token", Value: 1}}, Options: options.Index().SetSparse(true)},
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if _, err := s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("profiles indexes: %w", err)
	}
	if _, err := s.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(reportPurgeGrace / time.Second)),
	}); err != nil {
		return fmt.Errorf("reports indexes: %w", err)
	}
	return nil
}

// ── Users ───────────────────────────────────────────────────

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		return fmt.Errorf("mongo insert user: %w", duplicateKey(err, "email", "username"))
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"username": username}}}
	return s.findUser(ctx, filter)
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *MongoStore) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"reset_password_token":   tokenHash,
		"reset_password_expires": expires,
		"updated_at":             s.now(),
	}})
	return err
}

// ConsumeVerificationToken marks the matching user verified and clears the
// token in the same write, so a token can be used once.
func (s *MongoStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	filter := bson.M{
		"email_verification_token":   tokenHash,
		"email_verification_expires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"is_email_verified": true, "updated_at": now},
		"$unset": bson.M{"email_verification_token": "", "email_verification_expires": ""},
	}
	return s.findAndUpdateUser(ctx, filter, update)
}

// ConsumeResetToken swaps the password, clears the reset token and any
// lockout in a single write.
func (s *MongoStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	filter := bson.M{
		"reset_password_token":   tokenHash,
		"reset_password_expires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"password": passwordHash, "login_attempts": 0, "updated_at": now},
		"$unset": bson.M{"reset_password_token": "", "reset_password_expires": "", "lock_until": ""},
	}
	return s.findAndUpdateUser(ctx, filter, update)
}

func (s *MongoStore) findAndUpdateUser(ctx context.Context, filter, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *MongoStore) IncrementLoginAttempts(ctx context.Context, id primitive.ObjectID) (int, error) {
	u, err := s.findAndUpdateUser(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"login_attempts": 1},
		"$set": bson.M{"updated_at": s.now()},
	})
	if err != nil {
		return 0, err
	}
	return u.LoginAttempts, nil
}

// LockUser locks the account until the given time and restarts the counter
// so the user gets a fresh set of attempts once the lock lapses.
func (s *MongoStore) LockUser(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"lock_until":     until,
		"login_attempts": 0,
		"updated_at":     s.now(),
	}})
	return err
}

func (s *MongoStore) ResetLoginAttempts(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"login_attempts": 0, "updated_at": s.now()},
		"$unset": bson.M{"lock_until": ""},
	})
	return err
}

// ── Profiles ────────────────────────────────────────────────

func (s *MongoStore) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	var p models.Profile
	if err := s.profiles.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SaveProfile creates the user's profile or updates it in place. Optional
// fields are only written when present in in.
func (s *MongoStore) SaveProfile(ctx context.Context, userID primitive.ObjectID, in *models.ProfileInput) (*models.Profile, error) {
	now := s.now()
	set := bson.M{
		"full_name":    in.FullName,
		"phone":        in.Phone,
		"country_code": in.CountryCode,
		"city":         in.City,
		"email":        in.Email,
		"username":     in.Username,
		"updated_at":   now,
	}
	setOnInsert := bson.M{"created_at": now}

	if in.ProfileImage != nil && *in.ProfileImage != "" {
		set["profile_image"] = *in.ProfileImage
	}
	if in.CropsScanned != nil {
		set["crops_scanned"] = nonNil(*in.CropsScanned)
	} else {
		setOnInsert["crops_scanned"] = []string{}
	}
	if in.CropsRecommended != nil {
		set["crops_recommended"] = nonNil(*in.CropsRecommended)
	} else {
		setOnInsert["crops_recommended"] = []string{}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var p models.Profile
	err := s.profiles.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		opts,
	).Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("mongo save profile: %w", err)
	}
	return &p, nil
}

// SetProfileImage points an existing profile at a new avatar object.
func (s *MongoStore) SetProfileImage(ctx context.Context, userID primitive.ObjectID, key string) error {
	res, err := s.profiles.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{
		"profile_image": key,
		"updated_at":    s.now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// ── Shareable reports ───────────────────────────────────────

func (s *MongoStore) InsertReport(ctx context.Context, r *models.ShareableReport) (string, error) {
	res, err := s.reports.InsertOne(ctx, r)
	if err != nil {
		return "", fmt.Errorf("mongo insert report: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	r.ID = oid
	return oid.Hex(), nil
}

// GetReport returns the stored snapshot whether or not it has expired;
// callers decide how to treat expiry.
func (s *MongoStore) GetReport(ctx context.Context, id string) (*models.ShareableReport, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var r models.ShareableReport
	if err := s.reports.FindOne(ctx, bson.M{"_id": oid}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}
