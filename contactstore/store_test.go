package contactstore

import "testing"

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestUpsertThenGet(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert("p-1", "alice"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c, err := store.Get("p-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Username != "alice" {
		t.Fatalf("Username = %q, want alice", c.Username)
	}
}

func TestSetOnlineCreatesIfMissing(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetOnline("p-2", "bob", true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	c, err := store.Get("p-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !c.IsOnline || c.Username != "bob" {
		t.Fatalf("got %+v, want online=true username=bob", c)
	}

	if err := store.SetOnline("p-2", "", false); err != nil {
		t.Fatalf("SetOnline offline: %v", err)
	}
	c, err = store.Get("p-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.IsOnline {
		t.Fatal("IsOnline still true after SetOnline(false)")
	}
	if c.Username != "bob" {
		t.Fatalf("Username = %q, want bob to survive an empty-username update", c.Username)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestListReturnsAllContacts(t *testing.T) {
	store := newTestStore(t)
	store.Upsert("p-1", "alice")
	store.Upsert("p-2", "bob")

	contacts, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("len(contacts) = %d, want 2", len(contacts))
	}
}
