package match

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsDecision() bool {
	return s == StatusAccepted || s == StatusRejected
}

type OverallStatus string

const (
	OverallPending  OverallStatus = "PENDING"
	OverallMatched  OverallStatus = "MATCHED"
	OverallRejected OverallStatus = "REJECTED"
)

// Match holds each side's decision for one canonical pair. The composite
// primary key guarantees a single row per pair. The overall status is
// derived on read and never stored, so it cannot drift from the two side
// columns.
type Match struct {
	UserOneID uint64 `gorm:"primaryKey;autoIncrement:false" json:"user_one_id"`
	UserTwoID uint64 `gorm:"primaryKey;autoIncrement:false" json:"user_two_id"`

	UserOneStatus Status `gorm:"type:varchar(16);not null;default:PENDING" json:"user_one_status"`
	UserTwoStatus Status `gorm:"type:varchar(16);not null;default:PENDING" json:"user_two_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Match) TableName() string { return "matches" }

func (m *Match) Pair() PairKey {
	return PairKey{UserOneID: m.UserOneID, UserTwoID: m.UserTwoID}
}

func (m *Match) StatusOf(userID uint64) Status {
	if userID == m.UserOneID {
		return m.UserOneStatus
	}
	return m.UserTwoStatus
}

// Overall derives the pair status. Rejection is sticky and dominates an
// acceptance on the other side.
func (m *Match) Overall() OverallStatus {
	if m.UserOneStatus == StatusRejected || m.UserTwoStatus == StatusRejected {
		return OverallRejected
	}
	if m.UserOneStatus == StatusAccepted && m.UserTwoStatus == StatusAccepted {
		return OverallMatched
	}
	return OverallPending
}
