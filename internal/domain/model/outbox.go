package model

import "time"

// OutboxMessage 與訂單同一個交易寫入, 再由 relay 送到 kafka
type OutboxMessage struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	EventID   string     `gorm:"uniqueIndex;not null;type:varchar(64)" json:"event_id"`
	Topic     string     `gorm:"not null;type:varchar(100)" json:"topic"`
	Key       string     `gorm:"not null;type:varchar(100)" json:"key"`
	Payload   []byte     `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `gorm:"index" json:"sent_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
