package types

import (
	"time"
)

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email,omitempty"`
	DisplayColor string    `json:"displayColor"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// UserSummary is the author identity attached to messages.
type UserSummary struct {
	Id           string `json:"id"`
	Username     string `json:"username"`
	DisplayColor string `json:"displayColor"`
}

type OnlineUser struct {
	UserId       string `json:"userId"`
	Username     string `json:"username"`
	DisplayColor string `json:"displayColor"`
}

type ReactionView struct {
	Id       string `json:"id"`
	Emoji    string `json:"emoji"`
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type MessageView struct {
	Id        string         `json:"id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	User      UserSummary    `json:"user"`
	Reactions []ReactionView `json:"reactions"`
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"isPrivate"`
	CreatorId string    `json:"creatorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RoomView struct {
	Id               string   `json:"id"`
	Name             string   `json:"name"`
	IsPrivate        bool     `json:"isPrivate"`
	HasHistoryAccess bool     `json:"hasHistoryAccess"`
	CreatorId        string   `json:"creatorId"`
	IsOwner          bool     `json:"isOwner"`
	MemberIds        []string `json:"memberIds"`
}

// RoomSummary is the payload of roomCreated notifications.
type RoomSummary struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}
