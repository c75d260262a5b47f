package fanout

import (
	"errors"
	"sort"
	"testing"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/chat"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Conversation{},
		&models.Participant{},
		&models.Message{},
		&models.MessageRecipient{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// stubPresence reports a fixed set of users as online.
type stubPresence struct {
	online map[string]bool
}

func (s *stubPresence) Online(userIDs []string) []string {
	var out []string
	for _, id := range userIDs {
		if s.online[id] {
			out = append(out, id)
		}
	}
	return out
}

func setupConversation(t *testing.T, db *gorm.DB, members ...string) (*models.Conversation, *models.Message) {
	t.Helper()
	conv, err := chat.CreateConversation(db, chat.CreateOpts{
		Type:           models.ConversationGroup,
		Name:           "test",
		ParticipantIDs: members,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg, err := chat.Send(db, conv.ID, members[0], members[0], "Hi", chat.SendOpts{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return conv, msg
}

func ledgerRows(t *testing.T, db *gorm.DB, messageID uint) []models.MessageRecipient {
	t.Helper()
	var rows []models.MessageRecipient
	if err := db.Where("message_id = ?", messageID).Find(&rows).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return rows
}

func TestFanout_OneRowPerRecipientExceptSender(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob", "carol")

	res, err := Fanout(db, nil, msg)
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}

	sort.Strings(res.Recipients)
	if len(res.Recipients) != 2 || res.Recipients[0] != "bob" || res.Recipients[1] != "carol" {
		t.Errorf("recipients = %v, want [bob carol]", res.Recipients)
	}

	rows := ledgerRows(t, db, msg.ID)
	if len(rows) != 2 {
		t.Fatalf("len(ledger) = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Read {
			t.Errorf("row for %s created read", r.RecipientID)
		}
		if r.RecipientID == "alice" {
			t.Error("sender got a ledger row")
		}
	}
}

func TestFanout_RetryCreatesNoDuplicates(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob", "carol")

	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("first fanout: %v", err)
	}
	// A retried request must be swallowed, not fail, and add no rows.
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("retried fanout: %v", err)
	}

	rows := ledgerRows(t, db, msg.ID)
	if len(rows) != 2 {
		t.Errorf("len(ledger) = %d after retry, want 2", len(rows))
	}
}

func TestFanout_RetryKeepsReadState(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob")

	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("fanout: %v", err)
	}
	if err := MarkRead(db, msg.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("retried fanout: %v", err)
	}

	rows := ledgerRows(t, db, msg.ID)
	if len(rows) != 1 {
		t.Fatalf("len(ledger) = %d, want 1", len(rows))
	}
	if !rows[0].Read {
		t.Error("retried fanout reset the read flag")
	}
}

func TestFanout_PresenceSplit(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob", "carol", "dave")

	presence := &stubPresence{online: map[string]bool{"bob": true}}
	res, err := Fanout(db, presence, msg)
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}

	if len(res.Online) != 1 || res.Online[0] != "bob" {
		t.Errorf("online = %v, want [bob]", res.Online)
	}
	sort.Strings(res.Offline)
	if len(res.Offline) != 2 || res.Offline[0] != "carol" || res.Offline[1] != "dave" {
		t.Errorf("offline = %v, want [carol dave]", res.Offline)
	}

	for _, r := range ledgerRows(t, db, msg.ID) {
		wantSent := r.RecipientID == "bob"
		if r.NotificationSent != wantSent {
			t.Errorf("%s NotificationSent = %v, want %v", r.RecipientID, r.NotificationSent, wantSent)
		}
	}
}

func TestFanout_DirectConversation(t *testing.T) {
	db := openTestDB(t)
	conv, err := chat.CreateConversation(db, chat.CreateOpts{
		Type:           models.ConversationDirect,
		ParticipantIDs: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg, err := chat.Send(db, conv.ID, "alice", "Alice", "Hi", chat.SendOpts{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	res, err := Fanout(db, nil, msg)
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}
	if len(res.Recipients) != 1 || res.Recipients[0] != "bob" {
		t.Errorf("recipients = %v, want [bob]", res.Recipients)
	}
}

func TestMarkRead_SenderIsNoOp(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob")
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("fanout: %v", err)
	}

	// The sender has no ledger row; marking their own message read succeeds.
	if err := MarkRead(db, msg.ID, "alice"); err != nil {
		t.Fatalf("sender mark read: %v", err)
	}
}

func TestMarkRead_StampsReadAt(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob")
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("fanout: %v", err)
	}

	if err := MarkRead(db, msg.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	rows := ledgerRows(t, db, msg.ID)
	if !rows[0].Read || rows[0].ReadAt == nil {
		t.Errorf("row = %+v, want read with ReadAt set", rows[0])
	}
}

func TestMarkRead_UnknownMessage(t *testing.T) {
	db := openTestDB(t)

	err := MarkRead(db, 999, "bob")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	db := openTestDB(t)
	conv, msg1 := setupConversation(t, db, "alice", "bob")
	msg2, err := chat.Send(db, conv.ID, "alice", "Alice", "again", chat.SendOpts{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, m := range []*models.Message{msg1, msg2} {
		if _, err := Fanout(db, nil, m); err != nil {
			t.Fatalf("fanout: %v", err)
		}
	}

	n, err := MarkAllRead(db, "bob")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 2 {
		t.Errorf("rows changed = %d, want 2", n)
	}

	rows, err := UnreadLedger(db, "bob")
	if err != nil {
		t.Fatalf("unread ledger: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(unread) = %d, want 0", len(rows))
	}
}

func TestMarkEmailSent_FirstStampWins(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob")
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("fanout: %v", err)
	}

	if err := MarkEmailSent(db, msg.ID, "bob"); err != nil {
		t.Fatalf("mark email sent: %v", err)
	}
	first := ledgerRows(t, db, msg.ID)[0].EmailSentAt
	if first == nil {
		t.Fatal("EmailSentAt not set")
	}

	if err := MarkEmailSent(db, msg.ID, "bob"); err != nil {
		t.Fatalf("second mark email sent: %v", err)
	}
	second := ledgerRows(t, db, msg.ID)[0].EmailSentAt
	if !second.Equal(*first) {
		t.Errorf("EmailSentAt changed on second stamp: %v -> %v", first, second)
	}
}

func TestUnsent_ExcludesReadAndEmailed(t *testing.T) {
	db := openTestDB(t)
	_, msg := setupConversation(t, db, "alice", "bob", "carol", "dave")
	if _, err := Fanout(db, nil, msg); err != nil {
		t.Fatalf("fanout: %v", err)
	}

	if err := MarkRead(db, msg.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := MarkEmailSent(db, msg.ID, "carol"); err != nil {
		t.Fatalf("mark email sent: %v", err)
	}

	rows, err := Unsent(db)
	if err != nil {
		t.Fatalf("unsent: %v", err)
	}
	if len(rows) != 1 || rows[0].RecipientID != "dave" {
		t.Errorf("unsent = %v, want only dave", rows)
	}
}
