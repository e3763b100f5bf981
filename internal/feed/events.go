package feed

import (
	"time"

	"toolshed/pkg/models"
)

const (
	EventWelcome       = "welcome"
	EventReviewCreated = "review.created"
)

type Event struct {
	Type        string         `json:"type"`
	Review      *models.Review `json:"review,omitempty"`
	Subscribers int            `json:"subscribers,omitempty"`
	At          time.Time      `json:"at"`
}
