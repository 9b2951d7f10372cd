package models

import "time"

// Message is a single mailbox entry owned by Recipient.
type Message struct {
	ID        string
	Recipient string
	Sender    string
	Text      string
	SendTime  time.Time
	ReadTime  *time.Time
	Read      bool
}

// Column names of the messages collection.
const (
	MessageID        = "id"
	MessageRecipient = "recipient"
	MessageSender    = "sender"
	MessageText      = "text"
	MessageSendTime  = "send_time"
	MessageReadTime  = "read_time"
	MessageRead      = "is_read"
)
