package datastore_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/duome/duochat/pkg/datastore"
	"github.com/duome/duochat/pkg/model"
)

func NewTestSqlConn(t *testing.T) *datastore.SQLStore {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := datastore.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	type tcase struct {
		nickname  string
		expectErr bool
	}

	tcases := map[string]tcase{
		"simple": {
			nickname:  "alice",
			expectErr: false,
		},
		"unicode_nickname": {
			nickname:  "小月",
			expectErr: false,
		},
		"empty_nickname": { // Empty nickname should not be allowed
			nickname:  "",
			expectErr: true,
		},
		"over_length": { // 33+ characters is too long
			nickname:  "244332520805424681091903292885483",
			expectErr: true,
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			store := NewTestSqlConn(t)

			got, err := store.CreateUser(tc.nickname, "$2a$10$fakehash")
			if tc.expectErr {
				if err == nil {
					t.Fatalf("CreateUser: expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateUser: unexpected error: %v", err)
			}
			if got.ID == 0 {
				t.Fatal("CreateUser: expected assigned id")
			}
			if got.Nickname != tc.nickname {
				t.Fatalf("CreateUser: nickname mismatch want=%q got=%q", tc.nickname, got.Nickname)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestCreateUserDuplicateNickname(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	if _, err := store.CreateUser("alice", "h1"); err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}
	if _, err := store.CreateUser("alice", "h2"); err == nil {
		t.Fatal("CreateUser: expected unique constraint error for duplicate nickname")
	}
}

func TestGetAndCountUsers(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	count, err := store.CountUsers()
	if err != nil {
		t.Fatalf("CountUsers: unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("CountUsers: want 0 got %d", count)
	}

	alice, err := store.CreateUser("alice", "h1")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}
	bob, err := store.CreateUser("bob", "h2")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}

	count, err = store.CountUsers()
	if err != nil {
		t.Fatalf("CountUsers: unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("CountUsers: want 2 got %d", count)
	}

	byID, err := store.GetUserByID(alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID: unexpected error: %v", err)
	}
	if byID == nil || byID.Nickname != "alice" {
		t.Fatalf("GetUserByID: want alice got %+v", byID)
	}

	byNick, err := store.GetUserByNickname("bob")
	if err != nil {
		t.Fatalf("GetUserByNickname: unexpected error: %v", err)
	}
	if byNick == nil || byNick.ID != bob.ID {
		t.Fatalf("GetUserByNickname: want id %d got %+v", bob.ID, byNick)
	}

	missing, err := store.GetUserByID(999)
	if err != nil {
		t.Fatalf("GetUserByID: unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("GetUserByID: want nil for absent user, got %+v", missing)
	}

	users, err := store.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: unexpected error: %v", err)
	}
	wantNicks := []string{"alice", "bob"}
	gotNicks := make([]string, len(users))
	for i, u := range users {
		gotNicks[i] = u.Nickname
	}
	if diff := cmp.Diff(wantNicks, gotNicks); diff != "" {
		t.Errorf("ListUsers order mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateMessageAssignsIncreasingIDs(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	sender, err := store.CreateUser("alice", "h1")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}

	var lastID int64
	for i := 0; i < 5; i++ {
		m := &model.Message{
			SenderID: sender.ID,
			Kind:     model.KindText,
			Content:  fmt.Sprintf("message %d", i),
		}
		if err := store.CreateMessage(m); err != nil {
			t.Fatalf("CreateMessage: unexpected error: %v", err)
		}
		if m.ID <= lastID {
			t.Fatalf("CreateMessage: id not increasing: %d after %d", m.ID, lastID)
		}
		if m.CreatedAt.IsZero() {
			t.Fatal("CreateMessage: expected assigned timestamp")
		}
		lastID = m.ID
	}
}

func TestCreateMessageValidation(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	sender, err := store.CreateUser("alice", "h1")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}

	bad := &model.Message{SenderID: sender.ID, Kind: "sticker", Content: "x"}
	if err := store.CreateMessage(bad); err == nil {
		t.Fatal("CreateMessage: expected error for invalid kind")
	}

	empty := &model.Message{SenderID: sender.ID, Kind: model.KindText, Content: "  "}
	if err := store.CreateMessage(empty); err == nil {
		t.Fatal("CreateMessage: expected error for empty content")
	}
}

func TestListMessagesResolvesSenderAndOrder(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	alice, err := store.CreateUser("alice", "h1")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}
	bob, err := store.CreateUser("bob", "h2")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}

	duration := 12
	inputs := []model.Message{
		{SenderID: alice.ID, Kind: model.KindText, Content: "hi"},
		{SenderID: bob.ID, Kind: model.KindAudio, Content: "/files/audio/a.webm", Duration: &duration},
		{SenderID: alice.ID, Kind: model.KindText, Content: "bye"},
	}
	for i := range inputs {
		if err := store.CreateMessage(&inputs[i]); err != nil {
			t.Fatalf("CreateMessage: unexpected error: %v", err)
		}
	}

	got, err := store.ListMessages()
	if err != nil {
		t.Fatalf("ListMessages: unexpected error: %v", err)
	}

	want := []model.Message{
		{ID: inputs[0].ID, SenderID: alice.ID, SenderName: "alice", Kind: model.KindText, Content: "hi"},
		{ID: inputs[1].ID, SenderID: bob.ID, SenderName: "bob", Kind: model.KindAudio, Content: "/files/audio/a.webm", Duration: &duration},
		{ID: inputs[2].ID, SenderID: alice.ID, SenderName: "alice", Kind: model.KindText, Content: "bye"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Message{}, "CreatedAt")); diff != "" {
		t.Errorf("ListMessages mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteAllMessages(t *testing.T) {
	t.Parallel()
	store := NewTestSqlConn(t)

	alice, err := store.CreateUser("alice", "h1")
	if err != nil {
		t.Fatalf("CreateUser: unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		m := &model.Message{SenderID: alice.ID, Kind: model.KindText, Content: "x"}
		if err := store.CreateMessage(m); err != nil {
			t.Fatalf("CreateMessage: unexpected error: %v", err)
		}
	}

	if err := store.DeleteAllMessages(); err != nil {
		t.Fatalf("DeleteAllMessages: unexpected error: %v", err)
	}

	got, err := store.ListMessages()
	if err != nil {
		t.Fatalf("ListMessages: unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListMessages after delete: want empty, got %d", len(got))
	}
}
