package telegram

import "encoding/json"

// User is the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// Message carries the fields the poller reads. Everything else stays in
// Update.Raw.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// Update is one item from getUpdates. Raw keeps the exact upstream bytes so
// they can be forwarded untouched.
type Update struct {
	UpdateID          int64    `json:"update_id"`
	Message           *Message `json:"message,omitempty"`
	EditedMessage     *Message `json:"edited_message,omitempty"`
	ChannelPost       *Message `json:"channel_post,omitempty"`
	EditedChannelPost *Message `json:"edited_channel_post,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps a copy of the input.
func (u *Update) UnmarshalJSON(b []byte) error {
	type plain Update
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*u = Update(p)
	u.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// Msg returns the first message-like payload of u, or nil for updates
// without one (callback queries, member changes and so on).
func (u Update) Msg() *Message {
	for _, m := range []*Message{u.Message, u.EditedMessage, u.ChannelPost, u.EditedChannelPost} {
		if m != nil {
			return m
		}
	}
	return nil
}

// FromBot reports whether the update was sent by another bot.
func (u Update) FromBot() bool {
	m := u.Msg()
	return m != nil && m.From != nil && m.From.IsBot
}
