// Package users exposes the user directory consumed by the match and chat
// services: existence checks and display names, nothing more. Profile CRUD
// lives at the HTTP layer.
package users

import (
	"context"
	"errors"

	"github.com/studybuddy/backend/internal/apperrors"
	"github.com/studybuddy/backend/internal/models"
	"gorm.io/gorm"
)

type Directory interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
	DisplayName(ctx context.Context, userID uint64) (string, error)
}

type DBDirectory struct {
	db *gorm.DB
}

func NewDBDirectory(db *gorm.DB) *DBDirectory {
	return &DBDirectory{db: db}
}

func (d *DBDirectory) Exists(ctx context.Context, userID uint64) (bool, error) {
	var cnt int64
	if err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (d *DBDirectory) DisplayName(ctx context.Context, userID uint64) (string, error) {
	var u models.User
	if err := d.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", err
	}
	return u.DisplayName(), nil
}
