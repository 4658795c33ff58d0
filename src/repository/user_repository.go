package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/database"
	"optionsengine/src/model"
)

// UserRepository handles read/write operations for user accounts and
// their paper ledgers.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository instance using the main read/write database.
func NewUserRepository() *UserRepository {
	return &UserRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID fetches a single user by primary ID.
// Returns (nil, nil) if the user is not found.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch user by ID")

		return nil, err
	}

	return &user, nil
}

// FindByEmail fetches a single user by email.
// Returns (nil, nil) if the user is not found.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":  "UserRepository",
			"op":    "FindByEmail",
			"email": email,
		}).WithError(err).Error("Failed to fetch user by email")

		return nil, err
	}

	return &user, nil
}

// FindNotificationEnabled returns all users that opted into engine alerts.
func (r *UserRepository) FindNotificationEnabled(ctx context.Context) ([]model.User, error) {
	var users []model.User

	err := r.db.WithContext(ctx).
		Where("notifications_enabled = ?", true).
		Find(&users).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindNotificationEnabled",
		}).WithError(err).Error("Failed to fetch notification-enabled users")

		return nil, err
	}

	return users, nil
}

// FindActiveTraders returns all users that own at least one active automation.
func (r *UserRepository) FindActiveTraders(ctx context.Context) ([]model.User, error) {
	var users []model.User

	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&model.Automation{}).
			Select("user_id").
			Where("active = ?", true)).
		Find(&users).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindActiveTraders",
		}).WithError(err).Error("Failed to fetch users with active automations")

		return nil, err
	}

	return users, nil
}

// UpdatePaperBalance sets the user's paper balance to the given value.
// Callers must only reach this through the trade executor so the
// ledger invariants hold.
func (r *UserRepository) UpdatePaperBalance(ctx context.Context, id uint, balance float64) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("paper_balance", balance).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "UserRepository",
			"op":      "UpdatePaperBalance",
			"id":      id,
			"balance": balance,
		}).WithError(err).Error("Failed to update paper balance")

		return err
	}

	return nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "UserRepository",
			"op":    "Create",
			"email": user.Email,
		}).WithError(err).Error("Failed to create user")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "UserRepository",
		"op":      "Create",
		"user_id": user.ID,
	}).Info("User created successfully")

	return nil
}
