package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"chatboard/internal/chat"
	"chatboard/internal/database/migrations"
	"chatboard/internal/model"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// SQLiteDatabase implements chat.Database on SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	path    string
	timeout time.Duration
}

// NewSQLiteDatabase opens the database at path. path can be a file path or
// ":memory:". A zero timeout means DefaultTimeout.
func NewSQLiteDatabase(path string, timeout time.Duration) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, timeout), nil
}

// NewSQLiteDatabaseFromDB wraps an already configured connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, timeout time.Duration) *SQLiteDatabase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SQLiteDatabase{db: db, path: path, timeout: timeout}
}

// OpenConnection opens a SQLite connection with foreign keys enforced and a
// busy timeout. In-memory databases are limited to one connection since every
// connection would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	memory := path == ":memory:"

	var dsn string
	if memory {
		dsn = "file::memory:?_foreign_keys=on"
	} else {
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Path returns the path the database was opened with.
func (s *SQLiteDatabase) Path() string { return s.path }

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// Schema returns the current schema as CREATE statements.
func (s *SQLiteDatabase) Schema() (string, error) {
	return migrations.DumpSchema(s.db)
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

func (s *SQLiteDatabase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// wrap annotates err with what was being done and classifies it as
// chat.ErrConflict or chat.ErrUnavailable where it applies.
func wrap(err error, doing string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", doing, chat.ErrUnavailable, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %w", doing, chat.ErrUnavailable, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %w", doing, chat.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", doing, err)
}

type scanner interface {
	Scan(dest ...any) error
}

// Users

const userColumns = `id, username, email, password_hash, online, created_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Online, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, online, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Online, user.CreatedAt.UTC())
	return wrap(err, "inserting user")
}

func (s *SQLiteDatabase) findUser(ctx context.Context, where string, arg any) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "finding user")
	}
	return u, nil
}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *SQLiteDatabase) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, "email = ?", strings.ToLower(email))
}

func (s *SQLiteDatabase) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(username) LIKE ? ESCAPE '\' AND id <> ?
		ORDER BY username
		LIMIT ?`, pattern, excludeID, limit)
	if err != nil {
		return nil, wrap(err, "searching users")
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap(err, "scanning user")
		}
		users = append(users, u)
	}
	return users, wrap(rows.Err(), "searching users")
}

func (s *SQLiteDatabase) SetUserOnline(ctx context.Context, id string, online bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE users SET online = ? WHERE id = ?`, online, id)
	return wrap(err, "updating online flag")
}

func (s *SQLiteDatabase) ResetOnline(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE users SET online = 0 WHERE online = 1`)
	if err != nil {
		return 0, wrap(err, "resetting online flags")
	}
	n, err := res.RowsAffected()
	return n, wrap(err, "resetting online flags")
}

// Friendships

func (s *SQLiteDatabase) AreFriends(ctx context.Context, a, b string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?`, a, b).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "checking friendship")
	}
	return true, nil
}

func (s *SQLiteDatabase) ListFriends(ctx context.Context, userID string) ([]*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.online, u.created_at
		FROM friendships f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.username`, userID)
	if err != nil {
		return nil, wrap(err, "listing friends")
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap(err, "scanning friend")
		}
		users = append(users, u)
	}
	return users, wrap(rows.Err(), "listing friends")
}

func (s *SQLiteDatabase) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT friend_id FROM friendships WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrap(err, "listing friend ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "scanning friend id")
		}
		ids = append(ids, id)
	}
	return ids, wrap(rows.Err(), "listing friend ids")
}

const requestColumns = `id, sender_id, recipient_id, status, created_at, responded_at`

func scanRequest(row scanner) (*model.FriendRequest, error) {
	var (
		r           model.FriendRequest
		respondedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.SenderID, &r.RecipientID, &r.Status, &r.CreatedAt, &respondedAt); err != nil {
		return nil, err
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		r.RespondedAt = &t
	}
	return &r, nil
}

func (s *SQLiteDatabase) CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friend_requests (id, sender_id, recipient_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.SenderID, req.RecipientID, req.Status, req.CreatedAt.UTC())
	return wrap(err, "inserting friend request")
}

func (s *SQLiteDatabase) findRequest(ctx context.Context, where string, args ...any) (*model.FriendRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM friend_requests WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "finding friend request")
	}
	return r, nil
}

func (s *SQLiteDatabase) FindPendingRequestBetween(ctx context.Context, a, b string) (*model.FriendRequest, error) {
	return s.findRequest(ctx, `status = 'pending'
		AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))`, a, b, b, a)
}

func (s *SQLiteDatabase) FindPendingRequestFrom(ctx context.Context, senderID, recipientID string) (*model.FriendRequest, error) {
	return s.findRequest(ctx, `status = 'pending' AND sender_id = ? AND recipient_id = ?`, senderID, recipientID)
}

// AcceptFriendRequest marks the pending request accepted and inserts both
// friendship edges in one transaction.
func (s *SQLiteDatabase) AcceptFriendRequest(ctx context.Context, id, recipientID string, at time.Time) (*model.FriendRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	req, err := respondToRequest(ctx, tx, id, recipientID, model.RequestAccepted, at)
	if err != nil || req == nil {
		return nil, err
	}

	for _, edge := range [][2]string{{req.SenderID, req.RecipientID}, {req.RecipientID, req.SenderID}} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, friend_id) DO NOTHING`, edge[0], edge[1], at.UTC())
		if err != nil {
			return nil, wrap(err, "inserting friendship")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "committing transaction")
	}
	return req, nil
}

func (s *SQLiteDatabase) DeclineFriendRequest(ctx context.Context, id, recipientID string, at time.Time) (*model.FriendRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	req, err := respondToRequest(ctx, tx, id, recipientID, model.RequestDeclined, at)
	if err != nil || req == nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "committing transaction")
	}
	return req, nil
}

// respondToRequest moves a pending request addressed to recipientID to status.
// Returns (nil, nil) when no such pending request exists.
func respondToRequest(ctx context.Context, tx *sql.Tx, id, recipientID string, status model.RequestStatus, at time.Time) (*model.FriendRequest, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE friend_requests SET status = ?, responded_at = ?
		WHERE id = ? AND recipient_id = ? AND status = 'pending'`,
		status, at.UTC(), id, recipientID)
	if err != nil {
		return nil, wrap(err, "updating friend request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrap(err, "updating friend request")
	}
	if n == 0 {
		return nil, nil
	}

	req, err := scanRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM friend_requests WHERE id = ?`, id))
	if err != nil {
		return nil, wrap(err, "reading friend request")
	}
	return req, nil
}

func (s *SQLiteDatabase) ListIncomingRequests(ctx context.Context, recipientID string) ([]*model.FriendRequest, error) {
	return s.listRequests(ctx, "r.recipient_id = ?", "r.sender_id", recipientID)
}

func (s *SQLiteDatabase) ListOutgoingRequests(ctx context.Context, senderID string) ([]*model.FriendRequest, error) {
	return s.listRequests(ctx, "r.sender_id = ?", "r.recipient_id", senderID)
}

// listRequests lists pending requests matching where, joined with the user on
// the other side of the request.
func (s *SQLiteDatabase) listRequests(ctx context.Context, where, otherColumn, userID string) ([]*model.FriendRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.sender_id, r.recipient_id, r.status, r.created_at, r.responded_at,
		       u.id, u.username, u.online
		FROM friend_requests r JOIN users u ON u.id = `+otherColumn+`
		WHERE `+where+` AND r.status = 'pending'
		ORDER BY r.created_at DESC, r.rowid DESC`, userID)
	if err != nil {
		return nil, wrap(err, "listing friend requests")
	}
	defer rows.Close()

	var reqs []*model.FriendRequest
	for rows.Next() {
		var (
			r           model.FriendRequest
			respondedAt sql.NullTime
			other       model.UserSummary
		)
		if err := rows.Scan(&r.ID, &r.SenderID, &r.RecipientID, &r.Status, &r.CreatedAt, &respondedAt,
			&other.ID, &other.Username, &other.Online); err != nil {
			return nil, wrap(err, "scanning friend request")
		}
		if respondedAt.Valid {
			t := respondedAt.Time
			r.RespondedAt = &t
		}
		if other.ID == r.SenderID {
			r.Sender = &other
		} else {
			r.Recipient = &other
		}
		reqs = append(reqs, &r)
	}
	return reqs, wrap(rows.Err(), "listing friend requests")
}

// Messages

const messageColumns = `id, sender_id, recipient_id, content, type,
	file_name, file_size, file_url, file_mime_type, file_key,
	edited, edited_at, read, created_at`

func scanMessage(row scanner) (*model.Message, error) {
	var (
		m        model.Message
		fileName sql.NullString
		fileSize sql.NullInt64
		fileURL  sql.NullString
		fileMime sql.NullString
		fileKey  sql.NullString
		editedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Type,
		&fileName, &fileSize, &fileURL, &fileMime, &fileKey,
		&m.Edited, &editedAt, &m.Read, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if fileURL.Valid {
		m.File = &model.FileMeta{
			Name:     fileName.String,
			Size:     fileSize.Int64,
			URL:      fileURL.String,
			MimeType: fileMime.String,
			Key:      fileKey.String,
		}
	}
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return &m, nil
}

func (s *SQLiteDatabase) CreateMessage(ctx context.Context, msg *model.Message) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fileName, fileURL, fileMime, fileKey sql.NullString
	var fileSize sql.NullInt64
	if f := msg.File; f != nil {
		fileName = sql.NullString{String: f.Name, Valid: true}
		fileSize = sql.NullInt64{Int64: f.Size, Valid: true}
		fileURL = sql.NullString{String: f.URL, Valid: true}
		fileMime = sql.NullString{String: f.MimeType, Valid: f.MimeType != ""}
		fileKey = sql.NullString{String: f.Key, Valid: f.Key != ""}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, content, type,
			file_name, file_size, file_url, file_mime_type, file_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SenderID, msg.RecipientID, msg.Content, msg.Type,
		fileName, fileSize, fileURL, fileMime, fileKey, msg.CreatedAt.UTC())
	return wrap(err, "inserting message")
}

func (s *SQLiteDatabase) ListConversation(ctx context.Context, a, b string) ([]*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC, rowid ASC`, a, b, b, a)
	if err != nil {
		return nil, wrap(err, "listing conversation")
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrap(err, "scanning message")
		}
		msgs = append(msgs, m)
	}
	return msgs, wrap(rows.Err(), "listing conversation")
}

// updateMessage runs a conditional update and returns the updated row, or
// (nil, nil) when the condition matched nothing.
func (s *SQLiteDatabase) updateMessage(ctx context.Context, id string, query string, args ...any) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "updating message")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrap(err, "updating message")
	}
	if n == 0 {
		return nil, nil
	}

	m, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		return nil, wrap(err, "reading message")
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "committing transaction")
	}
	return m, nil
}

func (s *SQLiteDatabase) UpdateMessageContent(ctx context.Context, id, senderID, content string, at time.Time) (*model.Message, error) {
	return s.updateMessage(ctx, id, `
		UPDATE messages SET content = ?, edited = 1, edited_at = ?
		WHERE id = ? AND sender_id = ?`, content, at.UTC(), id, senderID)
}

func (s *SQLiteDatabase) MarkMessageRead(ctx context.Context, id, recipientID string) (*model.Message, error) {
	return s.updateMessage(ctx, id, `
		UPDATE messages SET read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
}

func (s *SQLiteDatabase) DeleteMessage(ctx context.Context, id, senderID string) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	m, err := scanMessage(tx.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ? AND sender_id = ?`, id, senderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err, "finding message")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return nil, wrap(err, "deleting message")
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "committing transaction")
	}
	return m, nil
}

// Notifications

const notificationColumns = `n.id, n.recipient_id, n.sender_id, n.type, n.message_id, n.content, n.read, n.created_at`

func scanNotification(row scanner, extra ...any) (*model.Notification, error) {
	var (
		n         model.Notification
		messageID sql.NullString
	)
	dest := append([]any{&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &messageID, &n.Content, &n.Read, &n.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if messageID.Valid {
		id := messageID.String
		n.MessageID = &id
	}
	return &n, nil
}

func (s *SQLiteDatabase) CreateNotification(ctx context.Context, n *model.Notification) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var messageID sql.NullString
	if n.MessageID != nil {
		messageID = sql.NullString{String: *n.MessageID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, message_id, content, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.SenderID, n.Type, messageID, n.Content, n.Read, n.CreatedAt.UTC())
	return wrap(err, "inserting notification")
}

// ListNotifications returns notifications newest first with the sender's
// username and, for message notifications, a projection of the message.
func (s *SQLiteDatabase) ListNotifications(ctx context.Context, recipientID string, filter chat.NotificationFilter) ([]*model.Notification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + notificationColumns + `,
		       u.username, u.online, m.content, m.type, m.file_name
		FROM notifications n
		LEFT JOIN users u ON u.id = n.sender_id
		LEFT JOIN messages m ON m.id = n.message_id
		WHERE n.recipient_id = ?`
	args := []any{recipientID}
	if filter.UnreadOnly {
		query += ` AND n.read = 0`
	}
	if filter.Type != "" {
		query += ` AND n.type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY n.created_at DESC, n.rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "listing notifications")
	}
	defer rows.Close()

	var ns []*model.Notification
	for rows.Next() {
		var (
			username, msgContent, msgType, fileName sql.NullString
			online                                  sql.NullBool
		)
		n, err := scanNotification(rows, &username, &online, &msgContent, &msgType, &fileName)
		if err != nil {
			return nil, wrap(err, "scanning notification")
		}
		if username.Valid {
			n.Sender = &model.UserSummary{ID: n.SenderID, Username: username.String, Online: online.Bool}
		}
		if msgType.Valid {
			n.Message = &model.MessageSummary{
				Content:  msgContent.String,
				Type:     model.MessageType(msgType.String),
				FileName: fileName.String,
			}
		}
		ns = append(ns, n)
	}
	return ns, wrap(rows.Err(), "listing notifications")
}

func (s *SQLiteDatabase) MarkNotificationRead(ctx context.Context, id, recipientID string) (*model.Notification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return nil, wrap(err, "updating notification")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, wrap(err, "updating notification")
	} else if n == 0 {
		return nil, nil
	}

	n, err := scanNotification(tx.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications n WHERE n.id = ?`, id))
	if err != nil {
		return nil, wrap(err, "reading notification")
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "committing transaction")
	}
	return n, nil
}

func (s *SQLiteDatabase) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0`, recipientID)
	if err != nil {
		return 0, wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	return n, wrap(err, "marking notifications read")
}

func (s *SQLiteDatabase) DeleteNotification(ctx context.Context, id, recipientID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return false, wrap(err, "deleting notification")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err, "deleting notification")
	}
	return n > 0, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Compile-time check that SQLiteDatabase implements chat.Database.
var _ chat.Database = (*SQLiteDatabase)(nil)
