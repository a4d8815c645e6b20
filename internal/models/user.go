package models

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var emailExp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail brings an email address into its canonical form - email addresses are
// case-insensitive identities throughout the application
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail checks if the given string looks like an email address
func ValidEmail(email string) bool {
	return emailExp.MatchString(NormalizeEmail(email))
}

// NormalizeDisplayName trims and NFC-normalizes a user-provided display name
func NormalizeDisplayName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// User is one guest of a tasting event. Users only exist inside the event they joined
type User struct {
	// The (lowercased) email address - this is the user's identity inside the event
	Email string `json:"email"`
	// Optional name used for display purposes
	DisplayName string `json:"displayName,omitempty"`
	// When the user joined the event
	JoinedAt time.Time `json:"joinedAt"`
	// The item IDs the user has bookmarked for later
	Bookmarks map[int]bool `json:"bookmarks,omitempty"`
	// Whether this user administrates the event
	IsAdmin bool `json:"isAdministrator,omitempty"`
}

// clone creates a deep copy of the user record
func (u *User) clone() *User {
	ret := *u
	if u.Bookmarks != nil {
		ret.Bookmarks = make(map[int]bool, len(u.Bookmarks))
		for k, v := range u.Bookmarks {
			ret.Bookmarks[k] = v
		}
	}
	return &ret
}
