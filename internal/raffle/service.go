package raffle

import (
	"context"
	"errors"

	"github.com/raffleri/raffleri/internal/common"
	"github.com/raffleri/raffleri/internal/stream"
	"gorm.io/gorm"
)

// Result is the outcome of one weighted draw.
type Result struct {
	Winner            Entry  `json:"winner"`
	LiveChatID        string `json:"live_chat_id"`
	TotalEntries      int64  `json:"total_entries"`
	TotalParticipants int64  `json:"total_participants"`
	TotalComments     int64  `json:"total_comments"`
}

type Service struct {
	repo       *Repo
	streams    *stream.Repo
	maxPerUser int
}

func NewService(repo *Repo, streams *stream.Repo, maxPerUser int) *Service {
	if maxPerUser <= 0 || maxPerUser > 100 {
		maxPerUser = 5
	}
	return &Service{repo: repo, streams: streams, maxPerUser: maxPerUser}
}

// PickFromStore runs a synchronous draw over the current session's
// stored messages.
func (s *Service) PickFromStore(ctx context.Context) (*Result, error) {
	sess, err := s.streams.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoEntries
		}
		return nil, err
	}
	return s.pickForSession(ctx, sess)
}

func (s *Service) pickForSession(ctx context.Context, sess *stream.Session) (*Result, error) {
	msgs, err := s.streams.ListMessages(ctx, sess.ID, 0)
	if err != nil {
		return nil, err
	}

	entries := BuildEntries(msgs, s.maxPerUser)
	winner, err := PickWinner(entries)
	if err != nil {
		return nil, err
	}

	var totalEntries int64
	for _, e := range entries {
		totalEntries += int64(e.Entries)
	}
	return &Result{
		Winner:            winner,
		LiveChatID:        sess.LiveChatID,
		TotalEntries:      totalEntries,
		TotalParticipants: int64(len(entries)),
		TotalComments:     int64(len(msgs)),
	}, nil
}

// CreateDraw queues a draw for the current session. The bool reports
// whether a new draw was created (false when the idempotency key
// matched an existing one).
func (s *Service) CreateDraw(ctx context.Context, idempotencyKey *string) (*Draw, bool, error) {
	sess, err := s.streams.CurrentSession(ctx)
	if err != nil {
		return nil, false, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	d := &Draw{
		ID:             id,
		LiveChatID:     sess.LiveChatID,
		IdempotencyKey: idempotencyKey,
		Status:         DrawQueued,
	}
	return s.repo.CreateDrawOrGetExisting(ctx, d)
}

func (s *Service) GetDraw(ctx context.Context, id string) (*Draw, error) {
	return s.repo.GetDraw(ctx, id)
}

// RunDraw executes a queued draw. Called by the worker; the draw row
// carries the outcome either way.
func (s *Service) RunDraw(ctx context.Context, id string) error {
	_ = s.repo.MarkDrawRunning(ctx, id)

	d, err := s.repo.GetDraw(ctx, id)
	if err != nil {
		return err
	}

	sess, err := s.streams.GetSessionByLiveChatID(ctx, d.LiveChatID)
	if err != nil {
		_ = s.repo.MarkDrawFailed(ctx, id, "session no longer exists")
		return err
	}

	res, err := s.pickForSession(ctx, sess)
	if err != nil {
		_ = s.repo.MarkDrawFailed(ctx, id, err.Error())
		return err
	}
	return s.repo.MarkDrawSucceeded(ctx, id, res)
}
