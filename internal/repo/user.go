package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayush-jadaun/VidVsita/internal/models"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	// ErrStaleRefresh means the stored refresh token no longer matches
	// the value this request expected: a concurrent login/refresh won
	// the rotation race, or the token was revoked.
	ErrStaleRefresh = errors.New("stored refresh token superseded")
)

type GormRepo struct {
	DB *gorm.DB
}

// CreateUser inserts u unless the username is taken. The ID is
// generated here rather than by the database so sqlite-backed tests
// behave like postgres.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	tx := r.DB.WithContext(ctx).Where("username = ?", u.Username).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (r *GormRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindPublicByID loads the identity the access guard attaches to the
// request context. The secret columns are excluded from the projection.
func (r *GormRepo) FindPublicByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).
		Select("id", "name", "username", "is_active").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RotateRefreshToken replaces the stored refresh digest with next, but
// only if it still holds expected. The conditional WHERE turns two
// concurrent rotations on the same account into one winner and one
// ErrStaleRefresh instead of a silent lost update.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	tx := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, expected).
		Update("refresh_token", next)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrStaleRefresh
	}
	return nil
}

// ClearRefreshToken revokes the live session unconditionally; logout
// must succeed even if a concurrent refresh just rotated the token.
func (r *GormRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", "").Error
}
