package chat_test

import (
	"context"
	"testing"
	"time"

	"chatboard/internal/chat"
	"chatboard/internal/database"
	"chatboard/internal/model"
	"chatboard/internal/storage"
	"chatboard/internal/testutil"
)

type fixture struct {
	svc   *chat.ChatService
	db    *database.SQLiteDatabase
	store *storage.MemoryStore
	clock *testutil.StubClock
}

func newFixture(t *testing.T, opts chat.Options) *fixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	return newFixtureWithDB(t, db, db, opts)
}

// newFixtureWithDB builds the service over backing, which may wrap db.
func newFixtureWithDB(t *testing.T, db *database.SQLiteDatabase, backing chat.Database, opts chat.Options) *fixture {
	t.Helper()
	store := testutil.NewTestStore()
	clock := testutil.TickingClock(time.Second)
	svc := chat.NewChatService(backing, store, chat.NewNopLogger(), chat.NopMetrics{}, clock, testutil.NewStubIDGenerator(), opts)
	return &fixture{svc: svc, db: db, store: store, clock: clock}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, name)
}

func (f *fixture) connect(t *testing.T, userID, connID string) *testutil.RecordingConn {
	t.Helper()
	c := testutil.NewRecordingConn(connID)
	f.svc.Presence.Connect(context.Background(), userID, c)
	return c
}

func (f *fixture) befriend(t *testing.T, a, b *model.User) {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.Relationships.SendRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if _, err := f.svc.Relationships.Respond(ctx, req.ID, b.ID, chat.DecisionAccept); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
}

func (f *fixture) online(t *testing.T, userID string) bool {
	t.Helper()
	u, err := f.db.FindUserByID(context.Background(), userID)
	if err != nil || u == nil {
		t.Fatalf("FindUserByID(%s) = %v, %v", userID, u, err)
	}
	return u.Online
}

type notificationPayload struct {
	Notification model.Notification `json:"notification"`
}
