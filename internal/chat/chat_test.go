package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandwichops/relay/internal/apperr"
	"github.com/sandwichops/relay/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB creates an in-memory SQLite database with all required tables.
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
		&models.MessageLike{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// groupConv creates a group conversation with the given members.
func groupConv(t *testing.T, db *gorm.DB, members ...string) *models.Conversation {
	t.Helper()
	conv, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationGroup,
		Name:           "test group",
		ParticipantIDs: members,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

// --- CreateConversation ---

func TestCreateConversation_Direct(t *testing.T) {
	db := openTestDB(t)

	conv, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationDirect,
		ParticipantIDs: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID == 0 {
		t.Error("conversation ID not assigned")
	}

	ids, err := Participants(db, conv.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(participants) = %d, want 2", len(ids))
	}
}

func TestCreateConversation_DirectWrongParticipantCount(t *testing.T) {
	db := openTestDB(t)

	for _, ids := range [][]string{{"alice"}, {"alice", "bob", "carol"}, nil} {
		_, err := CreateConversation(db, CreateOpts{
			Type:           models.ConversationDirect,
			ParticipantIDs: ids,
		})
		if err == nil {
			t.Fatalf("expected error for %d participants", len(ids))
		}
		if _, ok := apperr.IsValidation(err); !ok {
			t.Errorf("error = %v, want ValidationError", err)
		}
	}
}

func TestCreateConversation_DirectDuplicateParticipant(t *testing.T) {
	db := openTestDB(t)

	_, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationDirect,
		ParticipantIDs: []string{"alice", "alice"},
	})
	if err == nil {
		t.Fatal("expected error for duplicate participant")
	}
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if !strings.Contains(ve.Fields[0], "got 1") {
		t.Errorf("fields = %v", ve.Fields)
	}
}

func TestCreateConversation_GroupDeduplicatesParticipants(t *testing.T) {
	db := openTestDB(t)

	conv, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationGroup,
		Name:           "standup",
		ParticipantIDs: []string{"alice", "bob", "alice"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, err := Participants(db, conv.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(participants) = %d, want 2", len(ids))
	}
}

func TestCreateConversation_DirectRejectsName(t *testing.T) {
	db := openTestDB(t)

	_, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationDirect,
		Name:           "not allowed",
		ParticipantIDs: []string{"alice", "bob"},
	})
	if err == nil {
		t.Fatal("expected error for named direct conversation")
	}
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if !strings.Contains(ve.Fields[0], "name is not allowed") {
		t.Errorf("fields = %v", ve.Fields)
	}
}

func TestCreateConversation_GroupRequiresName(t *testing.T) {
	db := openTestDB(t)

	_, err := CreateConversation(db, CreateOpts{
		Type:           models.ConversationGroup,
		ParticipantIDs: []string{"alice", "bob"},
	})
	if err == nil {
		t.Fatal("expected error for unnamed group")
	}
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if !strings.Contains(ve.Fields[0], "name is required") {
		t.Errorf("fields = %v", ve.Fields)
	}
}

func TestCreateConversation_UnknownType(t *testing.T) {
	db := openTestDB(t)

	_, err := CreateConversation(db, CreateOpts{
		Type:           "broadcast",
		ParticipantIDs: []string{"alice"},
	})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, ok := apperr.IsValidation(err); !ok {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

// --- AddParticipant ---

func TestAddParticipant_Idempotent(t *testing.T) {
	db := openTestDB(t)
	conv := groupConv(t, db, "alice", "bob")

	if err := AddParticipant(db, conv.ID, "carol"); err != nil {
		t.Fatalf("add carol: %v", err)
	}
	// Re-adding must be a no-op, not an error.
	if err := AddParticipant(db, conv.ID, "carol"); err != nil {
		t.Fatalf("re-add carol: %v", err)
	}

	ids, err := Participants(db, conv.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("len(participants) = %d, want 3", len(ids))
	}
}

func TestAddParticipant_ReAddKeepsCursor(t *testing.T) {
	db := openTestDB(t)
	conv := groupConv(t, db, "alice", "bob")

	at := time.Now().Add(time.Hour)
	if err := MarkRead(db, conv.ID, "alice", at); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := AddParticipant(db, conv.ID, "alice"); err != nil {
		t.Fatalf("re-add alice: %v", err)
	}

	p, err := participant(db, conv.ID, "alice")
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if !p.LastReadAt.Equal(at) {
		t.Errorf("LastReadAt = %v, want %v (re-add must not reset the cursor)", p.LastReadAt, at)
	}
}

func TestAddParticipant_UnknownConversation(t *testing.T) {
	db := openTestDB(t)

	err := AddParticipant(db, 999, "alice")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// --- MarkRead ---

func TestMarkRead_MonotonicCursor(t *testing.T) {
	db := openTestDB(t)
	conv := groupConv(t, db, "alice", "bob")

	base := time.Now()
	stamps := []time.Time{
		base.Add(10 * time.Minute),
		base.Add(5 * time.Minute),  // stale retry
		base.Add(20 * time.Minute),
		base.Add(15 * time.Minute), // stale retry
	}
	for _, at := range stamps {
		if err := MarkRead(db, conv.ID, "alice", at); err != nil {
			t.Fatalf("mark read at %v: %v", at, err)
		}
	}

	p, err := participant(db, conv.ID, "alice")
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	want := base.Add(20 * time.Minute)
	if !p.LastReadAt.Equal(want) {
		t.Errorf("LastReadAt = %v, want max stamp %v", p.LastReadAt, want)
	}
}

func TestMarkRead_NotAParticipant(t *testing.T) {
	db := openTestDB(t)
	conv := groupConv(t, db, "alice", "bob")

	err := MarkRead(db, conv.ID, "mallory", time.Now())
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestMarkRead_UnknownConversation(t *testing.T) {
	db := openTestDB(t)

	err := MarkRead(db, 999, "alice", time.Now())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
