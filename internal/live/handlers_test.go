package live

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chatboard/internal/chat"
	"chatboard/internal/model"
	"chatboard/internal/testutil"
)

type handlerFixture struct {
	svc   *chat.ChatService
	alice *model.User
	bob   *model.User
	aConn *testutil.RecordingConn
	bConn *testutil.RecordingConn
	h     *handler
}

// newHandlerFixture connects alice and bob; h handles alice's connection.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	svc := chat.NewChatService(db, testutil.NewTestStore(), chat.NewNopLogger(), chat.NopMetrics{},
		testutil.TickingClock(time.Second), testutil.NewStubIDGenerator(), chat.Options{})

	f := &handlerFixture{
		svc:   svc,
		alice: testutil.CreateUser(t, db, "alice"),
		bob:   testutil.CreateUser(t, db, "bob"),
		aConn: testutil.NewRecordingConn("alice-1"),
		bConn: testutil.NewRecordingConn("bob-1"),
	}
	svc.Presence.Connect(ctx, f.alice.ID, f.aConn)
	svc.Presence.Connect(ctx, f.bob.ID, f.bConn)
	f.h = &handler{svc: svc, logger: chat.NewNopLogger(), userID: f.alice.ID, conn: f.aConn}
	return f
}

func (f *handlerFixture) send(t *testing.T, name string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	frame, _ := json.Marshal(chat.Event{Name: name, Data: data})
	f.h.dispatch(context.Background(), frame)
}

func lastError(t *testing.T, c *testutil.RecordingConn, name string) string {
	t.Helper()
	evs := c.Named(name)
	if len(evs) == 0 {
		t.Fatalf("no %s event received", name)
	}
	var p struct {
		Event   string `json:"event"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	testutil.Decode(t, evs[len(evs)-1], &p)
	return p.Message
}

func TestHandler_Malformed(t *testing.T) {
	f := newHandlerFixture(t)

	f.h.dispatch(context.Background(), []byte("{not json"))
	if msg := lastError(t, f.aConn, outError); !strings.Contains(msg, "malformed") {
		t.Errorf("error message = %q", msg)
	}

	f.send(t, "teleport", nil)
	if msg := lastError(t, f.aConn, outError); !strings.Contains(msg, "unknown event") {
		t.Errorf("error message = %q", msg)
	}
}

func TestHandler_Ping(t *testing.T) {
	f := newHandlerFixture(t)
	f.send(t, inPing, nil)
	if got := len(f.aConn.Named(outPong)); got != 1 {
		t.Errorf("received %d pong events, want 1", got)
	}
}

func TestHandler_Join(t *testing.T) {
	f := newHandlerFixture(t)

	f.send(t, inJoin, f.alice.ID)
	f.send(t, inJoin, map[string]string{"userId": f.alice.ID})
	if got := len(f.aConn.Named(outError)); got != 0 {
		t.Fatalf("join with own id produced %d errors", got)
	}

	f.send(t, inJoin, f.bob.ID)
	if got := len(f.aConn.Named(outError)); got != 1 {
		t.Errorf("join as another user produced %d errors, want 1", got)
	}
}

func TestHandler_Typing(t *testing.T) {
	f := newHandlerFixture(t)

	f.send(t, inTyping, map[string]string{"senderId": f.alice.ID, "receiverId": f.bob.ID})
	f.send(t, inStopTyping, map[string]string{"receiverId": f.bob.ID})

	evs := f.bConn.Named(chat.EventUserTyping)
	if len(evs) != 2 {
		t.Fatalf("bob received %d userTyping events, want 2", len(evs))
	}
	var p struct {
		SenderID string `json:"senderId"`
		Typing   bool   `json:"typing"`
	}
	testutil.Decode(t, evs[0], &p)
	if p.SenderID != f.alice.ID || !p.Typing {
		t.Errorf("first userTyping = %+v", p)
	}
	testutil.Decode(t, evs[1], &p)
	if p.Typing {
		t.Error("stopTyping delivered typing = true")
	}

	t.Run("spoofed sender is rejected", func(t *testing.T) {
		f.send(t, inTyping, map[string]string{"senderId": f.bob.ID, "receiverId": f.bob.ID})
		if got := len(f.bConn.Named(chat.EventUserTyping)); got != 2 {
			t.Errorf("spoofed typing reached bob: %d events", got)
		}
		if msg := lastError(t, f.aConn, outError); !strings.Contains(msg, "does not match") {
			t.Errorf("error message = %q", msg)
		}
	})
}

func TestHandler_Notifications(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture(t)

	t.Run("sendNotification creates and routes", func(t *testing.T) {
		f.send(t, inSendNotification, map[string]string{
			"recipientId": f.bob.ID, "senderId": f.alice.ID, "type": "system", "content": "welcome",
		})
		if got := len(f.bConn.Named(chat.EventNewNotification)); got != 1 {
			t.Errorf("bob received %d newNotification events, want 1", got)
		}
	})

	t.Run("message notifications cannot be forged", func(t *testing.T) {
		f.send(t, inSendNotification, map[string]string{
			"recipientId": f.bob.ID, "type": "message", "content": "fake",
		})
		if got := len(f.bConn.Named(chat.EventNewNotification)); got != 1 {
			t.Errorf("bob received %d newNotification events, want still 1", got)
		}
	})

	t.Run("getUnreadNotifications and notificationRead", func(t *testing.T) {
		n, err := f.svc.Notifications.Create(ctx, chat.NotificationInput{
			RecipientID: f.alice.ID, SenderID: f.bob.ID, Type: model.NotificationSystem, Content: "hi alice",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		f.send(t, inGetUnreadNotifications, f.alice.ID)
		evs := f.aConn.Named(outUnreadNotifications)
		if len(evs) != 1 {
			t.Fatalf("received %d unreadNotifications events, want 1", len(evs))
		}
		var list []model.Notification
		testutil.Decode(t, evs[0], &list)
		if len(list) != 1 || list[0].ID != n.ID {
			t.Fatalf("unreadNotifications = %+v", list)
		}

		f.send(t, inNotificationRead, map[string]string{"notificationId": n.ID, "userId": f.alice.ID})
		if got := len(f.aConn.Named(chat.EventNotificationUpdated)); got != 1 {
			t.Errorf("received %d notificationUpdated events, want 1", got)
		}

		f.send(t, inGetUnreadNotifications, nil)
		evs = f.aConn.Named(outUnreadNotifications)
		testutil.Decode(t, evs[len(evs)-1], &list)
		if len(list) != 0 {
			t.Errorf("unread after notificationRead = %d, want 0", len(list))
		}
	})
}

func TestHandler_FriendRequests(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture(t)

	f.send(t, inSendFriendRequest, map[string]string{"senderId": f.alice.ID, "recipientId": f.bob.ID})
	if got := len(f.aConn.Named(outFriendRequestSent)); got != 1 {
		t.Fatalf("received %d friendRequestSent events, want 1", got)
	}
	if got := len(f.bConn.Named(chat.EventFriendRequest)); got != 1 {
		t.Errorf("bob received %d friend_request events, want 1", got)
	}

	f.send(t, inSendFriendRequest, map[string]string{"recipientId": f.bob.ID})
	if msg := lastError(t, f.aConn, outFriendRequestError); msg == "" {
		t.Error("duplicate request error has no message")
	}

	// Bob answers through his own connection, naming alice as sender and
	// the friend request notification he was shown.
	notes, err := f.svc.Notifications.ListByType(ctx, f.bob.ID, model.NotificationFriendRequest)
	if err != nil || len(notes) != 1 {
		t.Fatalf("ListByType() = (%v, %v), want one notification", notes, err)
	}
	bh := &handler{svc: f.svc, logger: chat.NewNopLogger(), userID: f.bob.ID, conn: f.bConn}
	frame, _ := json.Marshal(map[string]any{
		"event": inRespondToFriendRequest,
		"data": map[string]string{
			"senderId":       f.alice.ID,
			"recipientId":    f.bob.ID,
			"response":       "accepted",
			"notificationId": notes[0].ID,
		},
	})
	bh.dispatch(ctx, frame)

	if got := len(f.bConn.Named(outFriendRequestError)); got != 0 {
		t.Fatalf("respond produced %d errors", got)
	}
	ok, _ := f.svc.Relationships.AreFriends(ctx, f.alice.ID, f.bob.ID)
	if !ok {
		t.Error("AreFriends() = false after accept")
	}

	evs := f.aConn.Named(outFriendRequestResponse)
	if len(evs) != 1 {
		t.Fatalf("alice received %d friendRequestResponse events, want 1", len(evs))
	}
	var p struct {
		Status string `json:"status"`
		UserID string `json:"userId"`
	}
	testutil.Decode(t, evs[0], &p)
	if p.Status != "accepted" || p.UserID != f.bob.ID {
		t.Errorf("friendRequestResponse = %+v", p)
	}

	unread, _ := f.svc.Notifications.ListUnread(ctx, f.bob.ID)
	for _, n := range unread {
		if n.ID == notes[0].ID {
			t.Error("friend request notification still unread")
		}
	}

	t.Run("answering for someone else is rejected", func(t *testing.T) {
		f.send(t, inRespondToFriendRequest, map[string]string{
			"senderId": f.bob.ID, "recipientId": f.bob.ID, "response": "accept",
		})
		if msg := lastError(t, f.aConn, outFriendRequestError); !strings.Contains(msg, "does not match") {
			t.Errorf("error message = %q", msg)
		}
	})
}
