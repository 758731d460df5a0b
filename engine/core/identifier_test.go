package core

import "testing"

func TestIdentifierReusesReleasedIDs(t *testing.T) {
	type owner struct{ name string }

	a := IdentifierAcquireNewID(&owner{"a"})
	b := IdentifierAcquireNewID(&owner{"b"})
	if a == b {
		t.Fatal("two live owners must get distinct ids")
	}

	if err := IdentifierReleaseID(a); err != nil {
		t.Fatalf("IdentifierReleaseID() error: %v", err)
	}

	c := IdentifierAcquireNewID(&owner{"c"})
	if c != a {
		t.Errorf("released id %d not reused, got %d", a, c)
	}

	IdentifierReleaseID(b)
	IdentifierReleaseID(c)
}

func TestIdentifierConcurrentAcquire(t *testing.T) {
	const n = 32
	ids := make(chan uint32, n)

	for i := 0; i < n; i++ {
		go func() {
			ids <- IdentifierAcquireNewID(struct{}{})
		}()
	}

	seen := make(map[uint32]bool)
	for i := 0; i < n; i++ {
		id := <-ids
		if seen[id] {
			t.Fatalf("id %d handed out twice", id)
		}
		seen[id] = true
	}

	for id := range seen {
		IdentifierReleaseID(id)
	}
}
