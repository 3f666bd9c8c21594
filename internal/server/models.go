package server

import (
	nanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"chatterm/pkg/chat"
)

// User is a registered account. Passwords are stored bcrypt-hashed.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}

// Channel mirrors chat.Channel with persistence concerns attached.
type Channel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Removable bool
}

// Message rows are append-only; the API never updates or deletes them.
type Message struct {
	ID        string `gorm:"primaryKey"`
	ChannelID string `gorm:"index;not null"`
	Username  string `gorm:"not null"`
	Body      string `gorm:"not null"`
	Timestamp int64  `gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID, err = nanoid.New(8)
	}
	return
}

func (c *Channel) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID, err = nanoid.New(6)
	}
	return
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID, err = nanoid.New(10)
	}
	return
}

func (c Channel) toWire() chat.Channel {
	return chat.Channel{ID: c.ID, Name: c.Name, Removable: c.Removable}
}

func (m Message) toWire() chat.Message {
	return chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Username:  m.Username,
		Body:      m.Body,
		Timestamp: m.Timestamp,
	}
}
