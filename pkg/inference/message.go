package inference

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"
)

// Message is one chat turn. Images hold bare base64 payloads.
type Message struct {
	Role    Role
	Content string
	Images  []string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewVisionMessage creates a user message carrying images.
func NewVisionMessage(prompt string, images ...string) Message {
	return Message{Role: RoleUser, Content: prompt, Images: images}
}

// exchange builds the two-message conversation every relay call sends.
func exchange(system string, user Message) []Message {
	return []Message{NewSystemMessage(system), user}
}
