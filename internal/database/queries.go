package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	userColumns        = "id, username, email, password_hash, display_color, created_at, updated_at"
	roomColumns        = "id, name, is_private, creator_id, created_at, updated_at"
	insertMemberQuery  = "INSERT INTO room_members (id, room_id, user_id, has_history_access, joined_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (room_id, user_id) DO NOTHING"
	selectReactionBase = "SELECT r.id, r.message_id, r.user_id, r.emoji, r.created_at, a.username, a.display_color " +
		"FROM message_reactions r JOIN users a ON a.id = r.user_id "
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.DisplayColor,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, translateError(err)
}

func scanRoom(row rowScanner) (Room, error) {
	var (
		r         Room
		creatorId sql.NullString
	)
	err := row.Scan(
		&r.Id,
		&r.Name,
		&r.IsPrivate,
		&creatorId,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	r.CreatorId = creatorId.String
	return r, translateError(err)
}

func (db *PgChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := db.now()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, display_color, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+userColumns,
		uuid.NewString(),
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		DefaultDisplayColor,
		now,
		now,
	)

	return scanUser(row)
}

func (db *PgChatRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	if _, err := uuid.Parse(userId); err != nil {
		return User{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		userId,
	)

	return scanUser(row)
}

func (db *PgChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 LIMIT 1",
		username,
	)

	return scanUser(row)
}

func (db *PgChatRepository) UpdateUserProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE users SET username = $2, display_color = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING "+userColumns,
		params.UserId,
		params.Username,
		params.DisplayColor,
		db.now(),
	)

	return scanUser(row)
}

func (db *PgChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := db.now()
	var room Room
	room, err = scanRoom(tx.QueryRowContext(ctx,
		"INSERT INTO rooms (id, name, is_private, creator_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+roomColumns,
		uuid.NewString(),
		params.Name,
		params.IsPrivate,
		params.CreatorId,
		now,
		now,
	))
	if err != nil {
		return Room{}, err
	}

	// the creator always sees the full history
	if _, err = tx.ExecContext(ctx, insertMemberQuery, uuid.NewString(), room.Id, params.CreatorId, true, now); err != nil {
		return Room{}, translateError(err)
	}

	for _, m := range params.Members {
		if m.UserId == params.CreatorId {
			continue
		}
		if _, err = tx.ExecContext(ctx, insertMemberQuery, uuid.NewString(), room.Id, m.UserId, m.HasHistoryAccess, now); err != nil {
			return Room{}, translateError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) GetRoomById(ctx context.Context, roomId string) (Room, error) {
	if _, err := uuid.Parse(roomId); err != nil {
		return Room{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1 LIMIT 1",
		roomId,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) EnsureDefaultRoom(ctx context.Context, name string) (Room, error) {
	now := db.now()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO rooms (id, name, is_private, creator_id, created_at, updated_at) "+
			"VALUES ($1, $2, FALSE, NULL, $3, $4) ON CONFLICT (name) WHERE creator_id IS NULL DO NOTHING",
		uuid.NewString(),
		name,
		now,
		now,
	)
	if err != nil {
		return Room{}, fmt.Errorf("insert default room: %w", err)
	}

	return db.GetDefaultRoom(ctx, name)
}

func (db *PgChatRepository) GetDefaultRoom(ctx context.Context, name string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE name = $1 AND creator_id IS NULL LIMIT 1",
		name,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) GetMembership(ctx context.Context, roomId, userId string) (Membership, error) {
	if _, err := uuid.Parse(roomId); err != nil {
		return Membership{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, room_id, user_id, has_history_access, joined_at FROM room_members "+
			"WHERE room_id = $1 AND user_id = $2 LIMIT 1",
		roomId,
		userId,
	)

	var m Membership
	err := row.Scan(&m.Id, &m.RoomId, &m.UserId, &m.HasHistoryAccess, &m.JoinedAt)
	return m, translateError(err)
}

func (db *PgChatRepository) AddMembership(ctx context.Context, roomId, userId string, hasHistoryAccess bool) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		insertMemberQuery,
		uuid.NewString(),
		roomId,
		userId,
		hasHistoryAccess,
		db.now(),
	)
	if err != nil {
		return false, translateError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (db *PgChatRepository) ListMembershipsForUser(ctx context.Context, userId string) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.room_id, m.user_id, m.has_history_access, m.joined_at, "+
			"r.id, r.name, r.is_private, r.creator_id, r.created_at, r.updated_at "+
			"FROM room_members m JOIN rooms r ON r.id = m.room_id "+
			"WHERE m.user_id = $1 ORDER BY r.created_at ASC, r.id ASC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]Membership, 0)
	for rows.Next() {
		var (
			m         Membership
			creatorId sql.NullString
		)
		if err := rows.Scan(
			&m.Id,
			&m.RoomId,
			&m.UserId,
			&m.HasHistoryAccess,
			&m.JoinedAt,
			&m.Room.Id,
			&m.Room.Name,
			&m.Room.IsPrivate,
			&creatorId,
			&m.Room.CreatedAt,
			&m.Room.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Room.CreatorId = creatorId.String
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

func (db *PgChatRepository) ListRoomMemberIds(ctx context.Context, roomId string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY joined_at ASC, user_id ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (id, room_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, room_id, user_id, content, created_at",
		uuid.NewString(),
		params.RoomId,
		params.UserId,
		params.Content,
		db.now(),
	)

	var msg Message
	err := row.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Content, &msg.CreatedAt)
	return msg, translateError(err)
}

func (db *PgChatRepository) GetMessageById(ctx context.Context, messageId string) (Message, error) {
	if _, err := uuid.Parse(messageId); err != nil {
		return Message{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT id, room_id, user_id, content, created_at FROM messages WHERE id = $1 LIMIT 1",
		messageId,
	)

	var msg Message
	err := row.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Content, &msg.CreatedAt)
	return msg, translateError(err)
}

func (db *PgChatRepository) GetRoomMessages(ctx context.Context, roomId string, after *time.Time) ([]Message, error) {
	query := "SELECT m.id, m.room_id, m.user_id, m.content, m.created_at, a.username, a.display_color " +
		"FROM messages m JOIN users a ON a.id = m.user_id WHERE m.room_id = $1 "
	args := []any{roomId}
	if after != nil {
		query += "AND m.created_at > $2 "
		args = append(args, *after)
	}
	query += "ORDER BY m.created_at ASC, m.id ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	index := make(map[string]int)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.Id,
			&msg.RoomId,
			&msg.UserId,
			&msg.Content,
			&msg.CreatedAt,
			&msg.Author.Username,
			&msg.Author.DisplayColor,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Author.Id = msg.UserId
		msg.Reactions = make([]Reaction, 0)
		index[msg.Id] = len(messages)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.Id)
	}

	reactionRows, err := db.conn.QueryContext(ctx,
		selectReactionBase+"WHERE r.message_id = ANY($1) ORDER BY r.created_at ASC, r.id ASC",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer reactionRows.Close()

	for reactionRows.Next() {
		reaction, err := scanReaction(reactionRows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		if i, ok := index[reaction.MessageId]; ok {
			messages[i].Reactions = append(messages[i].Reactions, reaction)
		}
	}

	return messages, reactionRows.Err()
}

func scanReaction(row rowScanner) (Reaction, error) {
	var r Reaction
	err := row.Scan(
		&r.Id,
		&r.MessageId,
		&r.UserId,
		&r.Emoji,
		&r.CreatedAt,
		&r.Author.Username,
		&r.Author.DisplayColor,
	)
	r.Author.Id = r.UserId
	return r, translateError(err)
}

// FindOrCreateReaction returns the reaction for (messageId, userId, emoji),
// inserting it if it does not exist yet. The boolean reports whether a new
// row was created.
func (db *PgChatRepository) FindOrCreateReaction(ctx context.Context, messageId, userId, emoji string) (Reaction, bool, error) {
	if _, err := uuid.Parse(messageId); err != nil {
		return Reaction{}, false, ErrNotFound
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO message_reactions (id, message_id, user_id, emoji, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) ON CONFLICT (message_id, user_id, emoji) DO NOTHING",
		uuid.NewString(),
		messageId,
		userId,
		emoji,
		db.now(),
	)
	if err != nil {
		return Reaction{}, false, translateError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Reaction{}, false, err
	}

	row := db.conn.QueryRowContext(ctx,
		selectReactionBase+"WHERE r.message_id = $1 AND r.user_id = $2 AND r.emoji = $3 LIMIT 1",
		messageId,
		userId,
		emoji,
	)

	reaction, err := scanReaction(row)
	if err != nil {
		return Reaction{}, false, err
	}

	return reaction, n > 0, nil
}

func (db *PgChatRepository) GetReactionById(ctx context.Context, reactionId string) (Reaction, error) {
	if _, err := uuid.Parse(reactionId); err != nil {
		return Reaction{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		selectReactionBase+"WHERE r.id = $1 LIMIT 1",
		reactionId,
	)

	return scanReaction(row)
}

func (db *PgChatRepository) DeleteReaction(ctx context.Context, reactionId string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM message_reactions WHERE id = $1", reactionId)
	if err != nil {
		return translateError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
