package persona

import "testing"

func TestFindByIDResolvesAliases(t *testing.T) {
	store := NewMemoryStore(Seed())

	cases := map[string]string{
		"logical":   Logical,
		"T":         Logical,
		"emotional": Emotional,
		" f ":       Emotional,
	}
	for input, want := range cases {
		got, ok := store.FindByID(input)
		if !ok {
			t.Fatalf("expected persona for %q", input)
		}
		if got.ID != want {
			t.Fatalf("FindByID(%q) = %s, want %s", input, got.ID, want)
		}
	}

	if _, ok := store.FindByID("socrates"); ok {
		t.Fatal("expected unknown persona to be missing")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Name = "changed"

	if store.List()[0].Name == "changed" {
		t.Fatal("List should not expose internal slice")
	}
}
