package models

import (
	"github.com/google/uuid"
)

// PushSubscription is a browser Web Push subscription
type PushSubscription struct {
	UserID   *uuid.UUID `json:"user_id" db:"user_id"`
	Endpoint string     `json:"endpoint" db:"endpoint"`
	P256dh   *string    `json:"p256dh" db:"p256dh"`
	Auth     *string    `json:"auth" db:"auth"`
}

// TableName returns the table name for the PushSubscription model
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}

// PushMessage is the JSON payload delivered to the service worker
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Sermon is one entry of the sermons feed
type Sermon struct {
	Title     string `json:"title"`
	Speaker   string `json:"speaker"`
	YouTubeID string `json:"youtubeId"`
	Date      string `json:"date"`
}
