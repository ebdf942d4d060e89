package match

import "github.com/studybuddy/backend/internal/apperrors"

// PairKey is the canonical identifier for two distinct users being
// considered for pairing. UserOneID < UserTwoID always holds, so any two
// ids map to exactly one key regardless of argument order.
type PairKey struct {
	UserOneID uint64
	UserTwoID uint64
}

func NewPairKey(a, b uint64) (PairKey, error) {
	if a == b {
		return PairKey{}, apperrors.ErrInvalidPair
	}
	if a < b {
		return PairKey{UserOneID: a, UserTwoID: b}, nil
	}
	return PairKey{UserOneID: b, UserTwoID: a}, nil
}

func (k PairKey) Contains(userID uint64) bool {
	return userID == k.UserOneID || userID == k.UserTwoID
}

// Other returns the counterpart of userID in the pair. Callers must have
// checked Contains first; a mismatch is a programming error.
func (k PairKey) Other(userID uint64) uint64 {
	if userID == k.UserOneID {
		return k.UserTwoID
	}
	return k.UserOneID
}
