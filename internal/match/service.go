package match

import (
	"context"

	"github.com/studybuddy/backend/internal/apperrors"
	"github.com/studybuddy/backend/internal/models"
	"github.com/studybuddy/backend/internal/users"
)

// Promoter turns a mutually accepted pair into a conversation. It must be
// safe to invoke redundantly: both participants' decisions can race to
// complete the pair and both will observe MATCHED.
type Promoter interface {
	PromoteMatched(ctx context.Context, pair PairKey) error
}

type Service struct {
	repo     *Repo
	users    users.Directory
	promoter Promoter
}

func NewService(repo *Repo, dir users.Directory, promoter Promoter) *Service {
	return &Service{repo: repo, users: dir, promoter: promoter}
}

// SubmitDecision records the acting user's accept/reject for the pair and
// returns the derived overall status. Re-submitting the same decision is a
// no-op in effect; a different decision overwrites the previous one in
// either direction.
func (s *Service) SubmitDecision(ctx context.Context, actorID, targetID uint64, decision Status) (OverallStatus, error) {
	if !decision.IsDecision() {
		return "", apperrors.ErrValidation
	}

	pair, err := NewPairKey(actorID, targetID)
	if err != nil {
		return "", err
	}

	for _, id := range []uint64{actorID, targetID} {
		exists, err := s.users.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", apperrors.ErrNotFound
		}
	}

	if err := s.repo.Ensure(ctx, pair); err != nil {
		return "", err
	}
	if err := s.repo.SetSideStatus(ctx, pair, actorID, decision); err != nil {
		return "", err
	}

	m, err := s.repo.Get(ctx, pair)
	if err != nil {
		return "", err
	}

	overall := m.Overall()
	if overall == OverallMatched {
		// Only after the decision write is durable. Redundant invocations
		// are expected when both sides' decisions race.
		if err := s.promoter.PromoteMatched(ctx, pair); err != nil {
			return "", err
		}
	}
	return overall, nil
}

func (s *Service) PotentialMatches(ctx context.Context, userID uint64, limit int) ([]models.User, error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return s.repo.FindPotentialUsers(ctx, userID, limit)
}

// PendingMatch is a pair the user accepted that still awaits the other side.
type PendingMatch struct {
	OtherUserID   uint64 `json:"other_user_id"`
	OtherUserName string `json:"other_user_name"`
}

func (s *Service) PendingMatches(ctx context.Context, userID uint64) ([]PendingMatch, error) {
	matches, err := s.repo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]PendingMatch, 0, len(matches))
	for _, m := range matches {
		otherID := m.Pair().Other(userID)
		name, err := s.users.DisplayName(ctx, otherID)
		if err != nil {
			// The other account may have vanished; skip rather than fail
			// the whole listing.
			continue
		}
		out = append(out, PendingMatch{OtherUserID: otherID, OtherUserName: name})
	}
	return out, nil
}
