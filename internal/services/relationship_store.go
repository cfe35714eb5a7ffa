package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

// Decision is the receiver's answer to a pending request.
type Decision string

// Valid decisions for Respond.
const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// RelationshipStore owns relationship rows. Every mutation on an unordered
// pair serialises on the pair key, so two concurrent connects from opposite
// directions resolve deterministically: one pending row wins, the loser
// observes Conflict. Reads never take the pair lock.
type RelationshipStore struct {
	db    *gorm.DB
	locks sync.Map // pair key -> *sync.Mutex
}

// NewRelationshipStore constructs a RelationshipStore.
func NewRelationshipStore(db *gorm.DB) (*RelationshipStore, error) {
	if db == nil {
		return nil, errors.New("relationship store: db is required")
	}
	return &RelationshipStore{db: db}, nil
}

// UpsertPending creates a pending request from requester to receiver.
// A current declined row is superseded, never merged, to preserve audit
// history. Any other current row fails the call: Conflict for pending or
// matched, Forbidden for blocked. The blocked case carries the connect
// policy itself, so every write path through the store reports the block
// the same way the state machine would.
func (s *RelationshipStore) UpsertPending(ctx context.Context, requesterID, receiverID string) (*models.Relationship, error) {
	ctx = ensureContext(ctx)
	requesterID = trimmedID(requesterID)
	receiverID = trimmedID(receiverID)
	if requesterID == "" || receiverID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("requester and receiver ids are required")
	}
	if requesterID == receiverID {
		return nil, apperrors.ErrInvalidArgument.WithMessage("requester and receiver must differ")
	}

	pairKey := models.PairKey(requesterID, receiverID)
	unlock := s.lockPair(pairKey)
	defer unlock()

	var created models.Relationship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentForPair(tx, pairKey)
		if err != nil {
			return err
		}

		if current != nil {
			switch current.Status {
			case models.RelationshipBlocked:
				return apperrors.ErrForbidden
			case models.RelationshipPending, models.RelationshipMatched:
				return apperrors.ErrConflict
			case models.RelationshipDeclined:
				if err := supersede(tx, current); err != nil {
					return err
				}
			}
		}

		created = models.Relationship{
			RequesterID: requesterID,
			ReceiverID:  receiverID,
			PairKey:     pairKey,
			Status:      models.RelationshipPending,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// Respond applies the receiver's decision to a pending request.
func (s *RelationshipStore) Respond(ctx context.Context, relationshipID, responderID string, decision Decision) (*models.Relationship, error) {
	ctx = ensureContext(ctx)
	if decision != DecisionAccept && decision != DecisionDecline {
		return nil, apperrors.ErrInvalidArgument.WithMessage("decision must be accept or decline")
	}

	rel, err := s.GetByID(ctx, relationshipID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockPair(rel.PairKey)
	defer unlock()

	var updated models.Relationship
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the pair lock: the row may have been superseded
		// by a concurrent block between the lookup and here.
		if err := tx.First(&updated, "id = ?", rel.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("relationship store: load relationship: %w", err)
		}

		if updated.ReceiverID != trimmedID(responderID) {
			return apperrors.ErrForbidden
		}
		if !updated.IsCurrent() || updated.Status != models.RelationshipPending {
			return apperrors.ErrInvalidState
		}

		status := models.RelationshipMatched
		if decision == DecisionDecline {
			status = models.RelationshipDeclined
		}

		updated.Status = status
		return tx.Model(&updated).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Block writes a blocked row owned by the blocker, superseding whatever the
// pair currently holds. Blocking an already-blocked pair by the same actor
// is an idempotent no-op.
func (s *RelationshipStore) Block(ctx context.Context, blockerID, blockedID string) (*models.Relationship, error) {
	ctx = ensureContext(ctx)
	blockerID = trimmedID(blockerID)
	blockedID = trimmedID(blockedID)
	if blockerID == "" || blockedID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("blocker and blocked ids are required")
	}
	if blockerID == blockedID {
		return nil, apperrors.ErrInvalidArgument.WithMessage("a user cannot block themselves")
	}

	pairKey := models.PairKey(blockerID, blockedID)
	unlock := s.lockPair(pairKey)
	defer unlock()

	var result models.Relationship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentForPair(tx, pairKey)
		if err != nil {
			return err
		}

		if current != nil {
			if current.Status == models.RelationshipBlocked && current.RequesterID == blockerID {
				result = *current
				return nil
			}
			if err := supersede(tx, current); err != nil {
				return err
			}
		}

		result = models.Relationship{
			RequesterID: blockerID,
			ReceiverID:  blockedID,
			PairKey:     pairKey,
			Status:      models.RelationshipBlocked,
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Unblock lifts a block, returning the pair to no relationship. Only the
// blocker may unblock; the blocked row is superseded, not deleted.
func (s *RelationshipStore) Unblock(ctx context.Context, relationshipID, actorID string) error {
	ctx = ensureContext(ctx)

	rel, err := s.GetByID(ctx, relationshipID)
	if err != nil {
		return err
	}

	unlock := s.lockPair(rel.PairKey)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Relationship
		if err := tx.First(&row, "id = ?", rel.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("relationship store: load relationship: %w", err)
		}

		if !row.IsCurrent() || row.Status != models.RelationshipBlocked {
			return apperrors.ErrInvalidState
		}
		if row.RequesterID != trimmedID(actorID) {
			return apperrors.ErrForbidden
		}

		return supersede(tx, &row)
	})
}

// Get returns the current relationship row for the unordered pair, or nil
// when the pair has no history that is still current.
func (s *RelationshipStore) Get(ctx context.Context, userA, userB string) (*models.Relationship, error) {
	ctx = ensureContext(ctx)
	userA = trimmedID(userA)
	userB = trimmedID(userB)
	if userA == "" || userB == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("both user ids are required")
	}

	return currentForPair(s.db.WithContext(ctx), models.PairKey(userA, userB))
}

// GetByID loads a relationship row by its identifier.
func (s *RelationshipStore) GetByID(ctx context.Context, relationshipID string) (*models.Relationship, error) {
	ctx = ensureContext(ctx)
	relationshipID = trimmedID(relationshipID)
	if relationshipID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("relationship id is required")
	}

	var rel models.Relationship
	if err := s.db.WithContext(ctx).First(&rel, "id = ?", relationshipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("relationship store: load relationship: %w", err)
	}
	return &rel, nil
}

func (s *RelationshipStore) lockPair(pairKey string) func() {
	value, _ := s.locks.LoadOrStore(pairKey, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func currentForPair(tx *gorm.DB, pairKey string) (*models.Relationship, error) {
	var rel models.Relationship
	err := tx.Where("pair_key = ? AND superseded_at IS NULL", pairKey).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("relationship store: load current pair row: %w", err)
	}
	return &rel, nil
}

func supersede(tx *gorm.DB, rel *models.Relationship) error {
	now := time.Now().UTC()
	if err := tx.Model(rel).Update("superseded_at", now).Error; err != nil {
		return fmt.Errorf("relationship store: supersede row: %w", err)
	}
	rel.SupersededAt = &now
	return nil
}
