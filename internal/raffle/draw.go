package raffle

import "time"

type DrawStatus string

const (
	DrawQueued    DrawStatus = "queued"
	DrawRunning   DrawStatus = "running"
	DrawSucceeded DrawStatus = "succeeded"
	DrawFailed    DrawStatus = "failed"
)

// Draw is one raffle run over the stored messages of a session,
// executed asynchronously by the worker.
type Draw struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	LiveChatID string `gorm:"type:varchar(128);index;not null" json:"live_chat_id"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_draw_idempo,unique" json:"-"`

	Status DrawStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	WinnerUsername    *string `gorm:"type:varchar(255)" json:"winner_username,omitempty"`
	WinnerEntries     *int    `json:"winner_entries,omitempty"`
	TotalEntries      int64   `json:"total_entries"`
	TotalParticipants int64   `json:"total_participants"`
	TotalComments     int64   `json:"total_comments"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Draw) TableName() string { return "raffle_draws" }
