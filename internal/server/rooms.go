package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-roomchat/internal/database"
	"github.com/npezzotti/go-roomchat/internal/types"
)

// membership loads the (roomId, userId) membership, translating a missing
// row into ErrNotAMember.
func (cs *ChatServer) membership(ctx context.Context, roomId, userId string) (database.Membership, error) {
	m, err := cs.db.GetMembership(ctx, roomId, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Membership{}, ErrNotAMember
		}
		return database.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// roomHistory returns the messages userId may see in roomId. Members
// without history access only see messages created after they joined.
func (cs *ChatServer) roomHistory(ctx context.Context, roomId, userId string) ([]types.MessageView, error) {
	m, err := cs.membership(ctx, roomId, userId)
	if err != nil {
		return nil, err
	}

	var after *time.Time
	if !m.HasHistoryAccess {
		joinedAt := m.JoinedAt
		after = &joinedAt
	}

	messages, err := cs.db.GetRoomMessages(ctx, roomId, after)
	if err != nil {
		return nil, fmt.Errorf("get room messages: %w", err)
	}

	views := make([]types.MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView(msg))
	}
	return views, nil
}

func messageView(msg database.Message) types.MessageView {
	reactions := make([]types.ReactionView, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, types.ReactionView{
			Id:       r.Id,
			Emoji:    r.Emoji,
			UserId:   r.UserId,
			Username: r.Author.Username,
		})
	}

	return types.MessageView{
		Id:        msg.Id,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		User: types.UserSummary{
			Id:           msg.UserId,
			Username:     msg.Author.Username,
			DisplayColor: msg.Author.DisplayColor,
		},
		Reactions: reactions,
	}
}

func roomInfo(r database.Room) types.Room {
	return types.Room{
		Id:        r.Id,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		CreatorId: r.CreatorId,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// memberParams deduplicates memberIds, drops excludeId and resolves each
// member's history access, falling back to defaultAccess.
func memberParams(memberIds []string, access map[string]bool, excludeId string, defaultAccess bool) []database.MemberParams {
	seen := make(map[string]struct{}, len(memberIds))
	params := make([]database.MemberParams, 0, len(memberIds))
	for _, id := range memberIds {
		if id == "" || id == excludeId {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		hasAccess, ok := access[id]
		if !ok {
			hasAccess = defaultAccess
		}
		params = append(params, database.MemberParams{UserId: id, HasHistoryAccess: hasAccess})
	}
	return params
}

// userRooms lists every room userId belongs to together with its member
// ids.
func (cs *ChatServer) userRooms(ctx context.Context, userId string) ([]types.RoomView, error) {
	memberships, err := cs.db.ListMembershipsForUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	rooms := make([]types.RoomView, 0, len(memberships))
	for _, m := range memberships {
		memberIds, err := cs.db.ListRoomMemberIds(ctx, m.Room.Id)
		if err != nil {
			return nil, fmt.Errorf("list room members: %w", err)
		}

		rooms = append(rooms, types.RoomView{
			Id:               m.Room.Id,
			Name:             m.Room.Name,
			IsPrivate:        m.Room.IsPrivate,
			HasHistoryAccess: m.HasHistoryAccess,
			CreatorId:        m.Room.CreatorId,
			IsOwner:          m.Room.CreatorId != "" && m.Room.CreatorId == userId,
			MemberIds:        memberIds,
		})
	}
	return rooms, nil
}

// notifyRoomCreated tells every live connection of the listed users,
// except skipConnId, about room. Users without a connection find the room
// on their next getRooms.
func (cs *ChatServer) notifyRoomCreated(userIds []string, room database.Room, skipConnId string) {
	var connIds []string
	for _, id := range userIds {
		for _, connId := range cs.presence.ConnectionsForUser(id) {
			if connId != skipConnId {
				connIds = append(connIds, connId)
			}
		}
	}
	if len(connIds) == 0 {
		return
	}

	cs.router.EmitToConnections(connIds, NewEvent(EventRoomCreated, types.RoomSummary{
		Id:        room.Id,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
	}))
}

// JoinDefaultRoom adds userId to the default public room with full
// history access unless it is already a member.
func JoinDefaultRoom(ctx context.Context, db database.ChatRepository, roomName, userId string) (bool, error) {
	room, err := db.GetDefaultRoom(ctx, roomName)
	if err != nil {
		return false, fmt.Errorf("get default room %q: %w", roomName, err)
	}

	if _, err := db.GetMembership(ctx, room.Id, userId); err == nil {
		return false, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return false, fmt.Errorf("get membership: %w", err)
	}

	return db.AddMembership(ctx, room.Id, userId, true)
}
