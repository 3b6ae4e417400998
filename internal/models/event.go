package models

import "time"

// DayEvent is published after a trading day's quotes are committed
type DayEvent struct {
	EventType string    `json:"event_type"`
	DayKey    string    `json:"day_key"`
	Quotes    int64     `json:"quotes"`
	Timestamp time.Time `json:"timestamp"`
}
