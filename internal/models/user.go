package models

import "time"

type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Username     string `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(72);not null" json:"-"`

	FullName     string `gorm:"type:varchar(128)" json:"full_name"`
	Bio          string `gorm:"type:text" json:"bio"`
	Major        string `gorm:"type:varchar(64)" json:"major"`
	AcademicYear string `gorm:"type:varchar(16)" json:"academic_year"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName prefers the profile name, falling back to the generated username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
