package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"chatboard/internal/chat"
	"chatboard/internal/model"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestDB creates a new in-memory database with migrations applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", 0)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createUser(t *testing.T, db *SQLiteDatabase, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash-" + name,
		CreatedAt:    testEpoch,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u
}

func createMessage(t *testing.T, db *SQLiteDatabase, from, to *model.User, content string, at time.Time) *model.Message {
	t.Helper()
	m := &model.Message{
		ID:          uuid.NewString(),
		SenderID:    from.ID,
		RecipientID: to.ID,
		Content:     content,
		Type:        model.MessageText,
		CreatedAt:   at,
	}
	if err := db.CreateMessage(context.Background(), m); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	return m
}

func TestSQLiteDatabase_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil when user not found", func(t *testing.T) {
		db := newTestDB(t)

		u, err := db.FindUserByID(ctx, "missing")
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if u != nil {
			t.Errorf("FindUserByID() = %v, want nil", u)
		}
	})

	t.Run("finds user by id and email", func(t *testing.T) {
		db := newTestDB(t)
		created := createUser(t, db, "alice")

		byID, err := db.FindUserByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if byID == nil || byID.Username != "alice" || byID.PasswordHash != "hash-alice" {
			t.Fatalf("FindUserByID() = %+v", byID)
		}
		if !byID.CreatedAt.Equal(testEpoch) {
			t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, testEpoch)
		}

		byEmail, err := db.FindUserByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("FindUserByEmail() error = %v", err)
		}
		if byEmail == nil || byEmail.ID != created.ID {
			t.Errorf("FindUserByEmail() = %+v, want %s", byEmail, created.ID)
		}
	})

	t.Run("duplicate username or email is a conflict", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "alice")

		dupName := &model.User{ID: uuid.NewString(), Username: "alice", Email: "other@example.com", PasswordHash: "x", CreatedAt: testEpoch}
		if err := db.CreateUser(ctx, dupName); !errors.Is(err, chat.ErrConflict) {
			t.Errorf("CreateUser() duplicate username error = %v, want ErrConflict", err)
		}
		dupEmail := &model.User{ID: uuid.NewString(), Username: "alice2", Email: "alice@example.com", PasswordHash: "x", CreatedAt: testEpoch}
		if err := db.CreateUser(ctx, dupEmail); !errors.Is(err, chat.ErrConflict) {
			t.Errorf("CreateUser() duplicate email error = %v, want ErrConflict", err)
		}
	})

	t.Run("online flag and reset", func(t *testing.T) {
		db := newTestDB(t)
		alice := createUser(t, db, "alice")
		bob := createUser(t, db, "bob")

		for _, id := range []string{alice.ID, bob.ID} {
			if err := db.SetUserOnline(ctx, id, true); err != nil {
				t.Fatalf("SetUserOnline() error = %v", err)
			}
		}
		got, _ := db.FindUserByID(ctx, alice.ID)
		if !got.Online {
			t.Error("Online = false after SetUserOnline(true)")
		}

		n, err := db.ResetOnline(ctx)
		if err != nil {
			t.Fatalf("ResetOnline() error = %v", err)
		}
		if n != 2 {
			t.Errorf("ResetOnline() = %d, want 2", n)
		}
		got, _ = db.FindUserByID(ctx, bob.ID)
		if got.Online {
			t.Error("Online = true after ResetOnline()")
		}
	})
}

func TestSQLiteDatabase_SearchUsers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice")
	createUser(t, db, "Alicia")
	createUser(t, db, "bob")
	createUser(t, db, "ali_baba")
	createUser(t, db, "alixbaba")

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"case insensitive substring, caller excluded", "ALI", 10, []string{"Alicia", "ali_baba", "alixbaba"}},
		{"limit applies", "ali", 1, []string{"Alicia"}},
		{"underscore is literal", "i_b", 10, []string{"ali_baba"}},
		{"percent is literal", "%", 10, nil},
		{"no match", "zed", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := db.SearchUsers(ctx, tt.query, alice.ID, tt.limit)
			if err != nil {
				t.Fatalf("SearchUsers() error = %v", err)
			}
			var got []string
			for _, u := range users {
				got = append(got, u.Username)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("SearchUsers(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSQLiteDatabase_FriendRequests(t *testing.T) {
	ctx := context.Background()

	newRequest := func(t *testing.T, db *SQLiteDatabase, from, to *model.User) *model.FriendRequest {
		t.Helper()
		r := &model.FriendRequest{
			ID:          uuid.NewString(),
			SenderID:    from.ID,
			RecipientID: to.ID,
			Status:      model.RequestPending,
			CreatedAt:   testEpoch,
		}
		if err := db.CreateFriendRequest(ctx, r); err != nil {
			t.Fatalf("CreateFriendRequest() error = %v", err)
		}
		return r
	}

	t.Run("pending pair is unique in both directions", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		newRequest(t, db, alice, bob)

		reverse := &model.FriendRequest{ID: uuid.NewString(), SenderID: bob.ID, RecipientID: alice.ID, Status: model.RequestPending, CreatedAt: testEpoch}
		if err := db.CreateFriendRequest(ctx, reverse); !errors.Is(err, chat.ErrConflict) {
			t.Errorf("CreateFriendRequest() reverse pending error = %v, want ErrConflict", err)
		}

		found, err := db.FindPendingRequestBetween(ctx, bob.ID, alice.ID)
		if err != nil {
			t.Fatalf("FindPendingRequestBetween() error = %v", err)
		}
		if found == nil || found.SenderID != alice.ID {
			t.Errorf("FindPendingRequestBetween() = %+v", found)
		}
		if r, _ := db.FindPendingRequestFrom(ctx, bob.ID, alice.ID); r != nil {
			t.Errorf("FindPendingRequestFrom() wrong direction = %+v, want nil", r)
		}
	})

	t.Run("accept creates both friendship edges", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		req := newRequest(t, db, alice, bob)
		at := testEpoch.Add(time.Hour)

		if got, err := db.AcceptFriendRequest(ctx, req.ID, alice.ID, at); err != nil || got != nil {
			t.Errorf("AcceptFriendRequest() by sender = (%v, %v), want (nil, nil)", got, err)
		}

		got, err := db.AcceptFriendRequest(ctx, req.ID, bob.ID, at)
		if err != nil {
			t.Fatalf("AcceptFriendRequest() error = %v", err)
		}
		if got.Status != model.RequestAccepted || got.RespondedAt == nil || !got.RespondedAt.Equal(at) {
			t.Errorf("AcceptFriendRequest() = %+v", got)
		}

		for _, pair := range [][2]*model.User{{alice, bob}, {bob, alice}} {
			ok, err := db.AreFriends(ctx, pair[0].ID, pair[1].ID)
			if err != nil {
				t.Fatalf("AreFriends() error = %v", err)
			}
			if !ok {
				t.Errorf("AreFriends(%s, %s) = false", pair[0].Username, pair[1].Username)
			}
		}

		friends, _ := db.ListFriends(ctx, alice.ID)
		if len(friends) != 1 || friends[0].ID != bob.ID {
			t.Errorf("ListFriends() = %v", friends)
		}
		ids, _ := db.ListFriendIDs(ctx, bob.ID)
		if len(ids) != 1 || ids[0] != alice.ID {
			t.Errorf("ListFriendIDs() = %v", ids)
		}

		if again, err := db.AcceptFriendRequest(ctx, req.ID, bob.ID, at); err != nil || again != nil {
			t.Errorf("second AcceptFriendRequest() = (%v, %v), want (nil, nil)", again, err)
		}
	})

	t.Run("decline allows a new request", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		req := newRequest(t, db, alice, bob)

		got, err := db.DeclineFriendRequest(ctx, req.ID, bob.ID, testEpoch)
		if err != nil {
			t.Fatalf("DeclineFriendRequest() error = %v", err)
		}
		if got.Status != model.RequestDeclined {
			t.Errorf("Status = %s, want declined", got.Status)
		}
		if ok, _ := db.AreFriends(ctx, alice.ID, bob.ID); ok {
			t.Error("AreFriends() = true after decline")
		}

		newRequest(t, db, bob, alice)
	})

	t.Run("listings carry the other party", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob, carol := createUser(t, db, "alice"), createUser(t, db, "bob"), createUser(t, db, "carol")
		newRequest(t, db, alice, bob)
		newRequest(t, db, carol, bob)

		incoming, err := db.ListIncomingRequests(ctx, bob.ID)
		if err != nil {
			t.Fatalf("ListIncomingRequests() error = %v", err)
		}
		if len(incoming) != 2 {
			t.Fatalf("ListIncomingRequests() = %d, want 2", len(incoming))
		}
		// Equal timestamps fall back to insertion order, newest first.
		if incoming[0].Sender == nil || incoming[0].Sender.Username != "carol" || incoming[1].Sender.Username != "alice" {
			t.Errorf("ListIncomingRequests() senders = %+v, %+v", incoming[0].Sender, incoming[1].Sender)
		}

		outgoing, _ := db.ListOutgoingRequests(ctx, alice.ID)
		if len(outgoing) != 1 || outgoing[0].Recipient == nil || outgoing[0].Recipient.Username != "bob" {
			t.Errorf("ListOutgoingRequests() = %+v", outgoing)
		}
	})
}

func TestSQLiteDatabase_Messages(t *testing.T) {
	ctx := context.Background()

	t.Run("conversation in both directions, oldest first", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob, carol := createUser(t, db, "alice"), createUser(t, db, "bob"), createUser(t, db, "carol")
		createMessage(t, db, alice, bob, "first", testEpoch)
		createMessage(t, db, bob, alice, "second", testEpoch.Add(time.Second))
		createMessage(t, db, alice, carol, "elsewhere", testEpoch.Add(2*time.Second))
		createMessage(t, db, alice, bob, "third", testEpoch.Add(time.Second))

		msgs, err := db.ListConversation(ctx, bob.ID, alice.ID)
		if err != nil {
			t.Fatalf("ListConversation() error = %v", err)
		}
		var got []string
		for _, m := range msgs {
			got = append(got, m.Content)
		}
		if fmt.Sprint(got) != "[first second third]" {
			t.Errorf("ListConversation() = %v", got)
		}
	})

	t.Run("file metadata round trips", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		file := &model.FileMeta{Name: "a.png", Size: 12, URL: "/uploads/chat_files/a.png", MimeType: "image/png", Key: "chat_files/a.png"}
		m := &model.Message{ID: uuid.NewString(), SenderID: alice.ID, RecipientID: bob.ID, Content: "a.png", Type: model.MessageImage, File: file, CreatedAt: testEpoch}
		if err := db.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}

		msgs, _ := db.ListConversation(ctx, alice.ID, bob.ID)
		if len(msgs) != 1 || msgs[0].File == nil || *msgs[0].File != *file {
			t.Errorf("File = %+v, want %+v", msgs[0].File, file)
		}
	})

	t.Run("only the sender edits and deletes", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		m := createMessage(t, db, alice, bob, "helo", testEpoch)
		at := testEpoch.Add(time.Minute)

		if got, err := db.UpdateMessageContent(ctx, m.ID, bob.ID, "x", at); err != nil || got != nil {
			t.Errorf("UpdateMessageContent() by recipient = (%v, %v), want (nil, nil)", got, err)
		}
		got, err := db.UpdateMessageContent(ctx, m.ID, alice.ID, "hello", at)
		if err != nil {
			t.Fatalf("UpdateMessageContent() error = %v", err)
		}
		if got.Content != "hello" || !got.Edited || got.EditedAt == nil || !got.EditedAt.Equal(at) {
			t.Errorf("UpdateMessageContent() = %+v", got)
		}

		if got, err := db.DeleteMessage(ctx, m.ID, bob.ID); err != nil || got != nil {
			t.Errorf("DeleteMessage() by recipient = (%v, %v), want (nil, nil)", got, err)
		}
		deleted, err := db.DeleteMessage(ctx, m.ID, alice.ID)
		if err != nil {
			t.Fatalf("DeleteMessage() error = %v", err)
		}
		if deleted == nil || deleted.ID != m.ID {
			t.Errorf("DeleteMessage() = %+v", deleted)
		}
		if msgs, _ := db.ListConversation(ctx, alice.ID, bob.ID); len(msgs) != 0 {
			t.Errorf("ListConversation() after delete = %d messages", len(msgs))
		}
	})

	t.Run("only the recipient marks read", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		m := createMessage(t, db, alice, bob, "hi", testEpoch)

		if got, _ := db.MarkMessageRead(ctx, m.ID, alice.ID); got != nil {
			t.Errorf("MarkMessageRead() by sender = %+v, want nil", got)
		}
		got, err := db.MarkMessageRead(ctx, m.ID, bob.ID)
		if err != nil {
			t.Fatalf("MarkMessageRead() error = %v", err)
		}
		if !got.Read {
			t.Error("Read = false after MarkMessageRead()")
		}
	})
}

func TestSQLiteDatabase_Notifications(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, db *SQLiteDatabase, to, from *model.User, typ model.NotificationType, msg *model.Message, at time.Time) *model.Notification {
		t.Helper()
		n := &model.Notification{ID: uuid.NewString(), RecipientID: to.ID, SenderID: from.ID, Type: typ, Content: string(typ), CreatedAt: at}
		if msg != nil {
			n.MessageID = &msg.ID
		}
		if err := db.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification() error = %v", err)
		}
		return n
	}

	t.Run("filters, order and projection", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		msg := createMessage(t, db, alice, bob, "hey", testEpoch)

		create(t, db, bob, alice, model.NotificationFriendRequest, nil, testEpoch)
		read := create(t, db, bob, alice, model.NotificationSystem, nil, testEpoch.Add(time.Second))
		create(t, db, bob, alice, model.NotificationMessage, msg, testEpoch.Add(2*time.Second))
		create(t, db, alice, bob, model.NotificationSystem, nil, testEpoch)

		if got, err := db.MarkNotificationRead(ctx, read.ID, bob.ID); err != nil || got == nil || !got.Read {
			t.Fatalf("MarkNotificationRead() = (%+v, %v)", got, err)
		}

		all, err := db.ListNotifications(ctx, bob.ID, chat.NotificationFilter{})
		if err != nil {
			t.Fatalf("ListNotifications() error = %v", err)
		}
		var types []model.NotificationType
		for _, n := range all {
			types = append(types, n.Type)
		}
		if fmt.Sprint(types) != "[message system friend_request]" {
			t.Errorf("ListNotifications() types = %v", types)
		}

		unread, _ := db.ListNotifications(ctx, bob.ID, chat.NotificationFilter{UnreadOnly: true})
		if len(unread) != 2 {
			t.Errorf("unread = %d, want 2", len(unread))
		}

		limited, _ := db.ListNotifications(ctx, bob.ID, chat.NotificationFilter{Limit: 1})
		if len(limited) != 1 {
			t.Errorf("limited = %d, want 1", len(limited))
		}

		byType, _ := db.ListNotifications(ctx, bob.ID, chat.NotificationFilter{Type: model.NotificationMessage})
		if len(byType) != 1 {
			t.Fatalf("by type = %d, want 1", len(byType))
		}
		n := byType[0]
		if n.Sender == nil || n.Sender.Username != "alice" {
			t.Errorf("Sender = %+v", n.Sender)
		}
		if n.Message == nil || n.Message.Content != "hey" || n.Message.Type != model.MessageText {
			t.Errorf("Message = %+v", n.Message)
		}
		if all[1].Message != nil {
			t.Errorf("system notification has message projection %+v", all[1].Message)
		}
	})

	t.Run("message notification needs its message", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")

		n := &model.Notification{ID: uuid.NewString(), RecipientID: bob.ID, SenderID: alice.ID, Type: model.NotificationMessage, Content: "x", CreatedAt: testEpoch}
		if err := db.CreateNotification(ctx, n); err == nil {
			t.Error("CreateNotification() without message id expected error")
		}
		missing := "missing"
		n.MessageID = &missing
		if err := db.CreateNotification(ctx, n); err == nil {
			t.Error("CreateNotification() with unknown message expected error")
		}
	})

	t.Run("mark all, delete, and ownership", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		first := create(t, db, bob, alice, model.NotificationSystem, nil, testEpoch)
		create(t, db, bob, alice, model.NotificationSystem, nil, testEpoch)

		if got, _ := db.MarkNotificationRead(ctx, first.ID, alice.ID); got != nil {
			t.Errorf("MarkNotificationRead() by non-recipient = %+v, want nil", got)
		}

		n, err := db.MarkAllNotificationsRead(ctx, bob.ID)
		if err != nil {
			t.Fatalf("MarkAllNotificationsRead() error = %v", err)
		}
		if n != 2 {
			t.Errorf("MarkAllNotificationsRead() = %d, want 2", n)
		}

		if ok, _ := db.DeleteNotification(ctx, first.ID, alice.ID); ok {
			t.Error("DeleteNotification() by non-recipient = true")
		}
		ok, err := db.DeleteNotification(ctx, first.ID, bob.ID)
		if err != nil || !ok {
			t.Errorf("DeleteNotification() = (%v, %v), want (true, nil)", ok, err)
		}
	})

	t.Run("deleting a message removes its notifications", func(t *testing.T) {
		db := newTestDB(t)
		alice, bob := createUser(t, db, "alice"), createUser(t, db, "bob")
		msg := createMessage(t, db, alice, bob, "hey", testEpoch)
		create(t, db, bob, alice, model.NotificationMessage, msg, testEpoch)

		if _, err := db.DeleteMessage(ctx, msg.ID, alice.ID); err != nil {
			t.Fatalf("DeleteMessage() error = %v", err)
		}
		all, _ := db.ListNotifications(ctx, bob.ID, chat.NotificationFilter{})
		if len(all) != 0 {
			t.Errorf("ListNotifications() after message delete = %d, want 0", len(all))
		}
	})
}

func TestSQLiteDatabase_Errors(t *testing.T) {
	t.Run("expired deadline is unavailable", func(t *testing.T) {
		db := newTestDB(t)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := db.FindUserByID(ctx, "anyone")
		if !errors.Is(err, chat.ErrUnavailable) {
			t.Errorf("FindUserByID() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("file database persists across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chat.db")
		db, err := NewSQLiteDatabase(path, time.Second)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		if err := db.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		alice := createUser(t, db, "alice")
		db.Close()

		db, err = NewSQLiteDatabase(path, time.Second)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() reopen error = %v", err)
		}
		defer db.Close()
		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
		got, err := db.FindUserByID(context.Background(), alice.ID)
		if err != nil || got == nil {
			t.Errorf("FindUserByID() after reopen = (%v, %v)", got, err)
		}
		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})
}
