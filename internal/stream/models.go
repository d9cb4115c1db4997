package stream

import "time"

// Session is the durable record of which live chat is being tracked.
// The most recently created row is the "current" session; only one
// session is ever actively polled at a time.
type Session struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement" json:"-"`
	LiveChatID    string  `gorm:"type:varchar(128);uniqueIndex;not null" json:"live_chat_id"`
	Origin        string  `gorm:"type:varchar(32)" json:"origin,omitempty"`
	ChannelURL    string  `gorm:"type:text" json:"channel_url,omitempty"`
	VideoID       string  `gorm:"type:varchar(128)" json:"video_id,omitempty"`
	VideoURL      string  `gorm:"type:text" json:"video_url,omitempty"`
	NextPageToken *string `gorm:"type:text" json:"next_page_token,omitempty"`
	TotalComments int64   `gorm:"not null;default:0" json:"total_comments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (Session) TableName() string { return "stream_sessions" }

// Message is one stored chat event. Rows are only ever inserted by the
// collector and deleted by a full wipe; MessageID is the dedup key.
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   uint64    `gorm:"index;not null" json:"-"`
	MessageID   *string   `gorm:"type:varchar(128);uniqueIndex" json:"message_id,omitempty"`
	Username    string    `gorm:"type:varchar(255);not null" json:"username"`
	CommentText string    `gorm:"type:text;not null" json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Message) TableName() string { return "stream_messages" }

// IncomingMessage is one chat event as returned by the upstream feed,
// before it is persisted.
type IncomingMessage struct {
	MessageID   string `json:"message_id"`
	Username    string `json:"username"`
	CommentText string `json:"comment_text"`
	PublishedAt string `json:"published_at,omitempty"`
}
