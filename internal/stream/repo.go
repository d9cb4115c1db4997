package stream

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// SessionOpts carries the optional descriptive fields recorded when a
// session is first created. ResetOnNew wipes all prior sessions and
// messages before creating a session for an unseen live chat id: the
// system tracks one stream's worth of history at a time.
type SessionOpts struct {
	ResetOnNew bool
	Origin     string
	ChannelURL string
	VideoID    string
	VideoURL   string
}

func (r *Repo) GetOrCreateSession(ctx context.Context, liveChatID string, opts SessionOpts) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("live_chat_id = ?", liveChatID).
		First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if opts.ResetOnNew {
		if err := r.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	s = Session{
		LiveChatID: liveChatID,
		Origin:     opts.Origin,
		ChannelURL: opts.ChannelURL,
		VideoID:    opts.VideoID,
		VideoURL:   opts.VideoURL,
	}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetSessionByLiveChatID(ctx context.Context, liveChatID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("live_chat_id = ?", liveChatID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentSession returns the most recently created session.
func (r *Repo) CurrentSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionProgress persists the cursor and cached comment count
// after a successful tick.
func (r *Repo) UpdateSessionProgress(ctx context.Context, s *Session, nextPageToken string, totalComments int64) error {
	updates := map[string]any{
		"total_comments": totalComments,
	}
	if nextPageToken != "" {
		updates["next_page_token"] = nextPageToken
	}
	if err := r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", s.ID).
		Updates(updates).Error; err != nil {
		return err
	}
	if nextPageToken != "" {
		s.NextPageToken = &nextPageToken
	}
	s.TotalComments = totalComments
	return nil
}

// AppendMessages inserts a batch of chat events, skipping rows whose
// message_id already exists. Re-fetching an overlapping page after a
// restart or retry is therefore a no-op.
func (r *Repo) AppendMessages(ctx context.Context, sessionID uint64, msgs []IncomingMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		username := m.Username
		if username == "" {
			username = "Unknown"
		}
		row := Message{
			SessionID:   sessionID,
			Username:    username,
			CommentText: m.CommentText,
		}
		if m.MessageID != "" {
			id := m.MessageID
			row.MessageID = &id
		}
		rows = append(rows, row)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *Repo) CountMessages(ctx context.Context, sessionID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error
	return n, err
}

// ListMessages returns messages in insertion order (oldest -> newest).
// limit <= 0 means no limit.
func (r *Repo) ListMessages(ctx context.Context, sessionID uint64, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ClearAll wipes all sessions and messages. Used when the tracked
// stream changes; previous raffle data is irrelevant at that point.
func (r *Repo) ClearAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Message{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Session{}).Error
}
