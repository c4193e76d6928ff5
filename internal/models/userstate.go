package models

// ConversationState represents the state of a conversation with a user
type ConversationState int

const (
	// Default is the initial state
	Default ConversationState = iota
	// AwaitingName is the state when the user is typing the name for a new key
	AwaitingName
	// AwaitConfirmDeletion is the state when the user is confirming profile deletion
	AwaitConfirmDeletion
)

// UserState represents the state of a user's conversation
type UserState struct {
	State ConversationState
}
