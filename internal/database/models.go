package database

import "time"

const DefaultDisplayColor = "#3B82F6"

type User struct {
	Id           string
	Username     string
	EmailAddress string
	PasswordHash string
	DisplayColor string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id        string
	Name      string
	IsPrivate bool
	// CreatorId is empty for the seeded default room.
	CreatorId string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	Id               string
	RoomId           string
	UserId           string
	HasHistoryAccess bool
	JoinedAt         time.Time
	Room             Room
}

type Message struct {
	Id        string
	RoomId    string
	UserId    string
	Content   string
	CreatedAt time.Time
	Author    User
	Reactions []Reaction
}

type Reaction struct {
	Id        string
	MessageId string
	UserId    string
	Emoji     string
	CreatedAt time.Time
	Author    User
}

type CreateUserParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateProfileParams struct {
	UserId       string
	Username     string
	DisplayColor string
}

type MemberParams struct {
	UserId           string
	HasHistoryAccess bool
}

type CreateRoomParams struct {
	Name      string
	IsPrivate bool
	CreatorId string
	Members   []MemberParams
}

type CreateMessageParams struct {
	RoomId  string
	UserId  string
	Content string
}
