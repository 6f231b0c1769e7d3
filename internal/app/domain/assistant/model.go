package assistant

import "time"

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Persona is a chat personality with its own system prompt. Built-in
// personas are seeded at startup and cannot be deleted.
type Persona struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Tagline      string    `json:"tagline,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	BuiltIn      bool      `json:"built_in"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation groups the messages a user exchanged with one persona.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PersonaID string    `json:"persona_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessage is the wire form handed to a completer.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CategorySuggestion is the categorizer's answer for a transaction
// description.
type CategorySuggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ScheduleBlock is one timeboxed slot in a generated day plan.
type ScheduleBlock struct {
	Start  string `json:"start"` // "HH:MM"
	End    string `json:"end"`
	Title  string `json:"title"`
	TaskID string `json:"task_id,omitempty"`
}

// Categories the categorizer is allowed to answer with.
var Categories = []string{
	"groceries", "transport", "dining", "utilities", "rent",
	"entertainment", "health", "income", "other",
}

// KnownCategory reports whether c is in the allowed category set.
func KnownCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
