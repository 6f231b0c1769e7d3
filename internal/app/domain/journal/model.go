package journal

import "time"

// Moods a journal entry can carry.
const (
	MoodAwful   = "awful"
	MoodBad     = "bad"
	MoodNeutral = "neutral"
	MoodGood    = "good"
	MoodGreat   = "great"
)

// Entry is one journal record. Content is markdown text; links pass through
// sanitisation before storage. EntryDate is date-only, formatted 2006-01-02.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	EntryDate string    `json:"entry_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnownMood reports whether m is a supported mood value.
func KnownMood(m string) bool {
	switch m {
	case MoodAwful, MoodBad, MoodNeutral, MoodGood, MoodGreat:
		return true
	}
	return false
}
