package models

import "time"

type Review struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"review_text"`
	Timestamp time.Time `json:"timestamp"`
}
