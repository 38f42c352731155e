package domain

import "encoding/json"

// ChatAutomationConfig is the resolved automation configuration attached to
// every chat event.
type ChatAutomationConfig struct {
	Tone           string `json:"tone"`
	WelcomeMessage string `json:"welcomeMessage"`
	KnowledgeBase  string `json:"knowledgeBase"`
}

// ChatTracking carries the keys the executor echoes back for correlation.
type ChatTracking struct {
	CredentialID string `json:"credentialId"`
	UpdateID     int64  `json:"updateId"`
	ChatID       string `json:"chatId"`
	MessageID    string `json:"messageId"`
}

// ChatEvent is the normalized payload forwarded for one chat-bot update.
// Update is the raw transport payload, passed through untouched.
type ChatEvent struct {
	Source     Platform             `json:"source"`
	UserID     string               `json:"userId"`
	Update     json.RawMessage      `json:"update"`
	Automation ChatAutomationConfig `json:"automation"`
	Tracking   ChatTracking         `json:"tracking"`
}

// MailEvent is the normalized payload forwarded for one unread message.
type MailEvent struct {
	UserID       string `json:"userId"`
	MessageID    string `json:"messageId"`
	ThreadID     string `json:"threadId"`
	SenderEmail  string `json:"senderEmail"`
	Subject      string `json:"subject"`
	EmailContent string `json:"emailContent"`
}
