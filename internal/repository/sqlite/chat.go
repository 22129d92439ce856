package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

var _ repository.ChatRepository = (*DB)(nil)

const chatSelect = `
	SELECT c.id, c.post_id, c.donor_id, c.receiver_id, c.created_at,
	       d.name, d.email, r.name, r.email
	FROM chats c
	JOIN users d ON d.id = c.donor_id
	JOIN users r ON r.id = c.receiver_id`

// FindChatForParticipant returns the oldest chat on postID that userID takes
// part in, as donor or as receiver, with its messages.
func (db *DB) FindChatForParticipant(ctx context.Context, postID, userID string) (*model.Chat, error) {
	chat, err := db.queryChat(ctx,
		chatSelect+`
		 WHERE c.post_id = ? AND (c.donor_id = ? OR c.receiver_id = ?)
		 ORDER BY c.created_at ASC, c.rowid ASC
		 LIMIT 1`,
		postID, userID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("chat for post", postID)
		}
		return nil, fmt.Errorf("sqlite: finding chat on post %s: %w", postID, err)
	}
	return chat, nil
}

// FindOrCreateChat returns the chat for the (post, donor, receiver) triple,
// creating it if it does not exist yet.
//
// ATOMICITY:
// A plain "SELECT, then INSERT if missing" lets two concurrent callers both
// see nothing and both insert. Here the UNIQUE index on the triple decides:
// INSERT ... ON CONFLICT DO NOTHING affects one row for exactly one caller.
// Only that caller writes the seed message, and everyone then reads back the
// single surviving row.
func (db *DB) FindOrCreateChat(ctx context.Context, chat *model.Chat, seed string) (*model.Chat, bool, error) {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: beginning find-or-create chat tx: %w", err)
	}
	defer rollback(tx)

	chatID := xid.New().String()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, post_id, donor_id, receiver_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(post_id, donor_id, receiver_id) DO NOTHING`,
		chatID, chat.PostID, chat.DonorID, chat.ReceiverID, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: inserting chat on post %s: %w", chat.PostID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: reading rows affected: %w", err)
	}

	created := affected == 1
	if created {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, chat_id, sender_id, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			xid.New().String(), chatID, chat.ReceiverID, seed, now,
		)
		if err != nil {
			return nil, false, fmt.Errorf("sqlite: inserting seed message for chat %s: %w", chatID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: committing chat on post %s: %w", chat.PostID, err)
	}

	stored, err := db.queryChat(ctx,
		chatSelect+` WHERE c.post_id = ? AND c.donor_id = ? AND c.receiver_id = ?`,
		chat.PostID, chat.DonorID, chat.ReceiverID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: reading back chat on post %s: %w", chat.PostID, err)
	}
	return stored, created, nil
}

// GetChatForMember returns the chat only when userID is its donor or
// receiver. A missing chat and a non-member caller are indistinguishable.
func (db *DB) GetChatForMember(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	chat, err := db.queryChat(ctx,
		chatSelect+` WHERE c.id = ? AND (c.donor_id = ? OR c.receiver_id = ?)`,
		chatID, userID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage("chat not found or unauthorized")
		}
		return nil, fmt.Errorf("sqlite: getting chat %s: %w", chatID, err)
	}
	return chat, nil
}

// AppendMessage stores msg, assigning its ID and timestamp. Messages are
// never edited or deleted afterwards.
func (db *DB) AppendMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting message into chat %s: %w", msg.ChatID, err)
	}
	return nil
}

// ListMessages returns the chat's messages oldest first. rowid breaks ties
// between messages stored within the same clock tick.
func (db *DB) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, chat_id, sender_id, content, created_at
		 FROM messages
		 WHERE chat_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages of chat %s: %w", chatID, err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating message rows: %w", err)
	}
	return messages, nil
}

// queryChat runs a single-row chat query and attaches the messages.
// It returns sql.ErrNoRows unwrapped so callers can map it.
func (db *DB) queryChat(ctx context.Context, query string, args ...any) (*model.Chat, error) {
	var c model.Chat
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.PostID, &c.DonorID, &c.ReceiverID, &c.CreatedAt,
		&c.Donor.Name, &c.Donor.Email, &c.Receiver.Name, &c.Receiver.Email,
	)
	if err != nil {
		return nil, err
	}
	c.Donor.ID = c.DonorID
	c.Receiver.ID = c.ReceiverID

	c.Messages, err = db.ListMessages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
