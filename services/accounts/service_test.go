package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"suggesterr/models"
)

// setupTestService creates a new accounts service for testing with a temp directory.
func setupTestService(t *testing.T) *Service {
	t.Helper()
	tmpDir := t.TempDir()
	svc, err := NewService(tmpDir)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestNewService_InitializesMasterAccount(t *testing.T) {
	svc := setupTestService(t)

	master, ok := svc.GetMasterAccount()
	if !ok {
		t.Fatal("expected master account to exist")
	}

	if master.ID != "master" {
		t.Errorf("expected master ID 'master', got %q", master.ID)
	}
	if master.Username != models.MasterAccountUsername {
		t.Errorf("expected master username %q, got %q", models.MasterAccountUsername, master.Username)
	}
	if !master.IsMaster {
		t.Error("expected master account IsMaster to be true")
	}
}

func TestNewService_EmptyStorageDir(t *testing.T) {
	_, err := NewService("")
	if err != ErrStorageDirRequired {
		t.Errorf("expected ErrStorageDirRequired, got %v", err)
	}
}

func TestNewService_LoadsExistingAccounts(t *testing.T) {
	tmpDir := t.TempDir()

	svc1, err := NewService(tmpDir)
	if err != nil {
		t.Fatalf("failed to create first service: %v", err)
	}
	if _, err := svc1.Create("parentuser", "password123"); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	svc2, err := NewService(tmpDir)
	if err != nil {
		t.Fatalf("failed to create second service: %v", err)
	}

	if _, ok := svc2.GetByUsername("parentuser"); !ok {
		t.Error("expected parentuser to be loaded from disk")
	}
}

func TestCreate_Success(t *testing.T) {
	svc := setupTestService(t)

	account, err := svc.Create("newparent", "password123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if account.ID == "" {
		t.Error("expected non-empty ID")
	}
	if account.Username != "newparent" {
		t.Errorf("expected username 'newparent', got %q", account.Username)
	}
	if account.IsMaster {
		t.Error("expected IsMaster to be false for non-master account")
	}

	// Verify password was hashed
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("password123")); err != nil {
		t.Error("expected password to be correctly hashed")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Create("", "password123"); err != ErrUsernameRequired {
		t.Errorf("expected ErrUsernameRequired, got %v", err)
	}
	if _, err := svc.Create("someone", "   "); err != ErrPasswordRequired {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Create("parentuser", "password123"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	if _, err := svc.Create("parentuser", "differentpassword"); err != ErrUsernameExists {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}

	// Case insensitive check, also covers the master username
	if _, err := svc.Create("PARENTUSER", "anotherpassword"); err != ErrUsernameExists {
		t.Errorf("expected ErrUsernameExists for case-insensitive match, got %v", err)
	}
	if _, err := svc.Create("admin", "password123"); err != ErrUsernameExists {
		t.Errorf("expected ErrUsernameExists for master username, got %v", err)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Create("TestParent", "mypassword"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Username matching is case-insensitive
	account, err := svc.Authenticate("testparent", "mypassword")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if account.Username != "TestParent" {
		t.Errorf("expected original username 'TestParent', got %q", account.Username)
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Create("parentuser", "correctpassword"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Authenticate("parentuser", "wrongpassword"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Authenticate("nonexistent", "anypassword"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := svc.Authenticate("", ""); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for empty credentials, got %v", err)
	}
}

func TestAuthenticate_MasterAccount(t *testing.T) {
	svc := setupTestService(t)

	account, err := svc.Authenticate("admin", DefaultMasterPassword)
	if err != nil {
		t.Fatalf("Authenticate master failed: %v", err)
	}
	if !account.IsMaster {
		t.Error("expected IsMaster to be true")
	}
}

func TestRename(t *testing.T) {
	svc := setupTestService(t)

	account, err := svc.Create("oldname", "password123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Rename(account.ID, "newname"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, ok := svc.GetByUsername("oldname"); ok {
		t.Error("expected old username to not be found")
	}
	if _, ok := svc.GetByUsername("newname"); !ok {
		t.Error("expected new username to be found")
	}

	if err := svc.Rename("nonexistent-id", "whatever"); err != ErrAccountNotFound {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRename_UsernameConflict(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Create("parent1", "password123"); err != nil {
		t.Fatalf("Create parent1 failed: %v", err)
	}
	parent2, err := svc.Create("parent2", "password123")
	if err != nil {
		t.Fatalf("Create parent2 failed: %v", err)
	}

	if err := svc.Rename(parent2.ID, "PARENT1"); err != ErrUsernameExists {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
	// Renaming to your own name (different case) is allowed
	if err := svc.Rename(parent2.ID, "Parent2"); err != nil {
		t.Errorf("expected self-rename to succeed, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	svc := setupTestService(t)

	account, err := svc.Create("parentuser", "oldpassword")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.UpdatePassword(account.ID, "newpassword"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	if _, err := svc.Authenticate("parentuser", "oldpassword"); err != ErrInvalidCredentials {
		t.Errorf("expected old password to fail, got %v", err)
	}
	if _, err := svc.Authenticate("parentuser", "newpassword"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	if err := svc.UpdatePassword(account.ID, ""); err != ErrPasswordRequired {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := setupTestService(t)

	account, err := svc.Create("parentuser", "password123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(account.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := svc.Get(account.ID); ok {
		t.Error("expected account to be deleted")
	}

	if err := svc.Delete("nonexistent-id"); err != ErrAccountNotFound {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDelete_CannotDeleteMaster(t *testing.T) {
	svc := setupTestService(t)

	master, ok := svc.GetMasterAccount()
	if !ok {
		t.Fatal("master account not found")
	}

	if err := svc.Delete(master.ID); err != ErrCannotDeleteMaster {
		t.Errorf("expected ErrCannotDeleteMaster, got %v", err)
	}
}

func TestDelete_CannotDeleteLastAccount(t *testing.T) {
	tmpDir := t.TempDir()

	// Construct a service without the master account to hit this edge case
	svc := &Service{
		path:     filepath.Join(tmpDir, "accounts.json"),
		accounts: make(map[string]models.Account),
	}
	svc.accounts["single"] = models.Account{ID: "single", Username: "single"}

	if err := svc.Delete("single"); err != ErrCannotDeleteLastAcct {
		t.Errorf("expected ErrCannotDeleteLastAcct, got %v", err)
	}
}

func TestHasDefaultPassword(t *testing.T) {
	svc := setupTestService(t)

	if !svc.HasDefaultPassword() {
		t.Error("expected HasDefaultPassword to be true initially")
	}

	master, ok := svc.GetMasterAccount()
	if !ok {
		t.Fatal("master account not found")
	}
	if err := svc.UpdatePassword(master.ID, "newpassword"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	if svc.HasDefaultPassword() {
		t.Error("expected HasDefaultPassword to be false after password change")
	}
}

func TestList_MasterFirstThenCreationOrder(t *testing.T) {
	svc := setupTestService(t)

	for _, name := range []string{"first", "second", "third"} {
		if _, err := svc.Create(name, "password123"); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	accounts := svc.List()
	if len(accounts) != 4 { // master + 3 created
		t.Fatalf("expected 4 accounts, got %d", len(accounts))
	}
	if !accounts[0].IsMaster {
		t.Error("expected master account to be first")
	}
	for i, want := range []string{"first", "second", "third"} {
		if accounts[i+1].Username != want {
			t.Errorf("expected account %d to be %q, got %q", i+1, want, accounts[i+1].Username)
		}
	}
}

func TestPersistence_FileCreated(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := NewService(tmpDir); err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	accountsPath := filepath.Join(tmpDir, "accounts.json")
	if _, err := os.Stat(accountsPath); os.IsNotExist(err) {
		t.Error("expected accounts.json to be created")
	}
}
