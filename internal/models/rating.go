package models

import (
	"fmt"
	"time"
)

// MaxNoteLength is the maximum number of characters a rating note may contain.
// Longer notes are rejected at write time, not truncated.
const MaxNoteLength = 500

// RatingKey builds the map key under which a rating is stored. Keying by (email, itemID) is what
// makes a resubmission replace the previous rating instead of duplicating it
func RatingKey(email string, itemID int) string {
	return fmt.Sprintf("%s|%d", NormalizeEmail(email), itemID)
}

// Rating is one user's rating of one item
type Rating struct {
	// The (lowercased) email address of the rating user
	Email string `json:"email"`
	// The official ID of the rated item
	ItemID int `json:"itemId"`
	// The score given - has to lie inside the configured rating scale
	Score int `json:"score"`
	// An optional tasting note
	Note string `json:"note,omitempty"`
	// When this rating was last written
	UpdatedAt time.Time `json:"updatedAt"`
}
