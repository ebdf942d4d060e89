package match

import (
	"context"
	"errors"

	"github.com/studybuddy/backend/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, pair PairKey) (*Match, error) {
	var m Match
	if err := r.db.WithContext(ctx).
		Where("user_one_id = ? AND user_two_id = ?", pair.UserOneID, pair.UserTwoID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Ensure creates the match row for the pair with both sides PENDING. When
// two decisions race to create the same pair, the loser's insert hits the
// composite primary key; we then confirm the row exists and move on.
func (r *Repo) Ensure(ctx context.Context, pair PairKey) error {
	m := &Match{
		UserOneID:     pair.UserOneID,
		UserTwoID:     pair.UserTwoID,
		UserOneStatus: StatusPending,
		UserTwoStatus: StatusPending,
	}
	err := r.db.WithContext(ctx).Create(m).Error
	if err == nil {
		return nil
	}

	if _, getErr := r.Get(ctx, pair); getErr == nil {
		return nil
	} else if !errors.Is(getErr, gorm.ErrRecordNotFound) {
		return getErr
	}
	return err
}

// SetSideStatus overwrites the acting user's side only, as a single-column
// UPDATE so a concurrent write to the other side is never clobbered.
func (r *Repo) SetSideStatus(ctx context.Context, pair PairKey, actorID uint64, status Status) error {
	column := "user_two_status"
	if actorID == pair.UserOneID {
		column = "user_one_status"
	}
	return r.db.WithContext(ctx).Model(&Match{}).
		Where("user_one_id = ? AND user_two_id = ?", pair.UserOneID, pair.UserTwoID).
		Update(column, status).Error
}

// FindPotentialUsers returns users the given user has not decided on yet,
// excluding themselves. A pair the other side rejected still shows up here;
// the decided-pairs filter only hides what this user acted on, matching the
// reference behavior.
func (r *Repo) FindPotentialUsers(ctx context.Context, userID uint64, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	decidedAsOne := r.db.Model(&Match{}).
		Select("user_two_id").
		Where("user_one_id = ? AND user_one_status <> ?", userID, StatusPending)
	decidedAsTwo := r.db.Model(&Match{}).
		Select("user_one_id").
		Where("user_two_id = ? AND user_two_status <> ?", userID, StatusPending)

	var out []models.User
	err := r.db.WithContext(ctx).
		Where("id <> ?", userID).
		Where("id NOT IN (?)", decidedAsOne).
		Where("id NOT IN (?)", decidedAsTwo).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingForUser returns matches where the user accepted and the other
// side has not answered yet.
func (r *Repo) ListPendingForUser(ctx context.Context, userID uint64) ([]Match, error) {
	var out []Match
	err := r.db.WithContext(ctx).
		Where("(user_one_id = ? AND user_one_status = ? AND user_two_status = ?) OR (user_two_id = ? AND user_two_status = ? AND user_one_status = ?)",
			userID, StatusAccepted, StatusPending,
			userID, StatusAccepted, StatusPending).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
