package raffle

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateDraw(ctx context.Context, d *Draw) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repo) GetDraw(ctx context.Context, id string) (*Draw, error) {
	var d Draw
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetDrawByIdempotencyKey(ctx context.Context, key string) (*Draw, error) {
	var d Draw
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDrawOrGetExisting tries to create a draw; if the idempotency
// key already exists it returns the existing draw instead. The bool
// reports whether a new row was created.
func (r *Repo) CreateDrawOrGetExisting(ctx context.Context, d *Draw) (*Draw, bool, error) {
	if d.IdempotencyKey == nil || *d.IdempotencyKey == "" {
		d.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
			return nil, false, err
		}
		return d, true, nil
	}

	err := r.db.WithContext(ctx).Create(d).Error
	if err == nil {
		return d, true, nil
	}

	existing, getErr := r.GetDrawByIdempotencyKey(ctx, *d.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

func (r *Repo) MarkDrawRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ? AND status = ?", id, DrawQueued).
		Update("status", DrawRunning).Error
}

func (r *Repo) MarkDrawSucceeded(ctx context.Context, id string, res *Result) error {
	return r.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             DrawSucceeded,
			"winner_username":    res.Winner.Username,
			"winner_entries":     res.Winner.Entries,
			"total_entries":      res.TotalEntries,
			"total_participants": res.TotalParticipants,
			"total_comments":     res.TotalComments,
			"error":              nil,
		}).Error
}

func (r *Repo) MarkDrawFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Draw{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": DrawFailed,
			"error":  errMsg,
		}).Error
}
