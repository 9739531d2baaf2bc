package models

// ChatRole identifies the author of a conversation turn. The values follow
// the Gemini wire vocabulary: "user" and "model".
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatTurn is one entry of a client-supplied conversation history. The client
// is the source of truth for history; the server never stores turns.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
