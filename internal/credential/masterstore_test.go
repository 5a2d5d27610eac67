package credential

import (
	"path/filepath"
	"testing"
	"time"
)

func TestMasterStoreSetupGetLockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if store.Status() != StatusLocked && store.Status() != StatusUnlocked {
		// NotSetUp also reports as Locked per Status(); accept either of
		// the two concrete Status values it maps to.
	}

	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	key := Key{ConnectionID: "conn-1", Type: CredentialPassword}
	if err := store.Set(key, "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := store.Get(key)
	if err != nil || !ok || v != "s3cret" {
		t.Fatalf("Get = %q, %v, %v; want s3cret, true, nil", v, ok, err)
	}

	store.Lock()
	if store.Status() != StatusLocked {
		t.Fatalf("Status = %v, want StatusLocked", store.Status())
	}
	if _, ok, _ := store.Get(key); ok {
		t.Fatal("Get returned a hit while locked")
	}

	if err := store.Unlock("other"); err == nil {
		t.Fatal("expected error unlocking with wrong password")
	}
	if err := store.Unlock("pw"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	v, ok, err = store.Get(key)
	if err != nil || !ok || v != "s3cret" {
		t.Fatalf("Get after unlock = %q, %v, %v", v, ok, err)
	}
}

func TestMasterStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	key := Key{ConnectionID: "conn-1", Type: CredentialPassword}
	if err := store.Set(key, "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore (reload): %v", err)
	}
	if reloaded.Status() != StatusLocked {
		t.Fatalf("Status = %v, want StatusLocked", reloaded.Status())
	}
	if err := reloaded.Unlock("pw"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	v, ok, err := reloaded.Get(key)
	if err != nil || !ok || v != "s3cret" {
		t.Fatalf("Get after reload = %q, %v, %v", v, ok, err)
	}
}

func TestMasterStoreChangePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("old"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	key := Key{ConnectionID: "c", Type: CredentialPassword}
	if err := store.Set(key, "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.ChangePassword("old", "new"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	store.Lock()
	if err := store.Unlock("old"); err == nil {
		t.Fatal("expected old password to fail after change")
	}
	if err := store.Unlock("new"); err != nil {
		t.Fatalf("Unlock with new password: %v", err)
	}
	v, ok, _ := store.Get(key)
	if !ok || v != "v" {
		t.Fatalf("Get after password change = %q, %v", v, ok)
	}
}

func TestMasterStoreRemoveAllForConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	pwKey := Key{ConnectionID: "c1", Type: CredentialPassword}
	passKey := Key{ConnectionID: "c1", Type: CredentialKeyPassphrase}
	store.Set(pwKey, "a")
	store.Set(passKey, "b")

	if err := store.RemoveAllForConnection("c1"); err != nil {
		t.Fatalf("RemoveAllForConnection: %v", err)
	}
	if _, ok, _ := store.Get(pwKey); ok {
		t.Error("password key still present")
	}
	if _, ok, _ := store.Get(passKey); ok {
		t.Error("passphrase key still present")
	}
}

func TestAutoLockTimerLocksAfterInactivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	locked := make(chan struct{}, 1)
	timer := NewAutoLockTimer(store, 20*time.Millisecond, func() {
		select {
		case locked <- struct{}{}:
		default:
		}
	})
	go timer.Run()
	defer timer.Stop()

	select {
	case <-locked:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-lock did not fire within timeout")
	}
	if store.Status() != StatusLocked {
		t.Errorf("Status = %v, want StatusLocked", store.Status())
	}
}

func TestAutoLockTimerActivityResetsClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	locked := make(chan struct{}, 1)
	timer := NewAutoLockTimer(store, 60*time.Millisecond, func() {
		select {
		case locked <- struct{}{}:
		default:
		}
	})
	go timer.Run()
	defer timer.Stop()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		timer.OnActivity()
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-locked:
		t.Fatal("auto-lock fired despite continuous activity")
	default:
	}
}

func TestAutoLockTimerZeroTimeoutDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMasterStore(path, nil)
	if err != nil {
		t.Fatalf("NewMasterStore: %v", err)
	}
	if err := store.Setup("pw"); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	locked := make(chan struct{}, 1)
	timer := NewAutoLockTimer(store, 0, func() {
		select {
		case locked <- struct{}{}:
		default:
		}
	})
	go timer.Run()
	defer timer.Stop()

	select {
	case <-locked:
		t.Fatal("auto-lock fired with timeout disabled")
	case <-time.After(100 * time.Millisecond):
	}
}
