package repositories

import (
	"fmt"

	"github.com/dmitrijs2005/msgbox/internal/server/models"
)

// UserSchema persists models.User records in the "users" collection.
var UserSchema = Schema[models.User]{
	Name: "users",
	Columns: []string{
		models.UserID, models.UserUsername, models.UserPasswordHash,
		models.UserRole, models.UserLoginTime, models.UserCreatedAt,
	},
	Unique: []string{models.UserUsername},
	Encode: func(u *models.User) Fields {
		return Fields{
			models.UserID:           u.ID,
			models.UserUsername:     u.Username,
			models.UserPasswordHash: u.PasswordHash,
			models.UserRole:         string(u.Role),
			models.UserLoginTime:    NullableTime(u.LoginTime),
			models.UserCreatedAt:    u.CreatedAt.UTC(),
		}
	},
	Decode: decodeUser,
	ID:     func(u *models.User) string { return u.ID },
	SetID:  func(u *models.User, id string) { u.ID = id },
}

// MessageSchema persists models.Message records in the "messages" collection.
var MessageSchema = Schema[models.Message]{
	Name: "messages",
	Columns: []string{
		models.MessageID, models.MessageRecipient, models.MessageSender,
		models.MessageText, models.MessageSendTime, models.MessageReadTime,
		models.MessageRead,
	},
	Encode: func(m *models.Message) Fields {
		return Fields{
			models.MessageID:        m.ID,
			models.MessageRecipient: m.Recipient,
			models.MessageSender:    m.Sender,
			models.MessageText:      m.Text,
			models.MessageSendTime:  m.SendTime.UTC(),
			models.MessageReadTime:  NullableTime(m.ReadTime),
			models.MessageRead:      m.Read,
		}
	},
	Decode: decodeMessage,
	ID:     func(m *models.Message) string { return m.ID },
	SetID:  func(m *models.Message, id string) { m.ID = id },
}

func decodeUser(rec Fields) (*models.User, error) {
	u := &models.User{}
	var err error
	var role string

	for _, f := range []struct {
		col string
		dst *string
	}{
		{models.UserID, &u.ID},
		{models.UserUsername, &u.Username},
		{models.UserPasswordHash, &u.PasswordHash},
		{models.UserRole, &role},
	} {
		if *f.dst, err = StringValue(rec[f.col]); err != nil {
			return nil, fmt.Errorf("users.%s: %w", f.col, err)
		}
	}
	u.Role = models.Role(role)

	if u.LoginTime, err = TimeValue(rec[models.UserLoginTime]); err != nil {
		return nil, fmt.Errorf("users.%s: %w", models.UserLoginTime, err)
	}
	created, err := TimeValue(rec[models.UserCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("users.%s: %w", models.UserCreatedAt, err)
	}
	if created != nil {
		u.CreatedAt = *created
	}
	return u, nil
}

func decodeMessage(rec Fields) (*models.Message, error) {
	m := &models.Message{}
	var err error

	for _, f := range []struct {
		col string
		dst *string
	}{
		{models.MessageID, &m.ID},
		{models.MessageRecipient, &m.Recipient},
		{models.MessageSender, &m.Sender},
		{models.MessageText, &m.Text},
	} {
		if *f.dst, err = StringValue(rec[f.col]); err != nil {
			return nil, fmt.Errorf("messages.%s: %w", f.col, err)
		}
	}

	sent, err := TimeValue(rec[models.MessageSendTime])
	if err != nil {
		return nil, fmt.Errorf("messages.%s: %w", models.MessageSendTime, err)
	}
	if sent != nil {
		m.SendTime = *sent
	}
	if m.ReadTime, err = TimeValue(rec[models.MessageReadTime]); err != nil {
		return nil, fmt.Errorf("messages.%s: %w", models.MessageReadTime, err)
	}
	if m.Read, err = BoolValue(rec[models.MessageRead]); err != nil {
		return nil, fmt.Errorf("messages.%s: %w", models.MessageRead, err)
	}
	return m, nil
}
