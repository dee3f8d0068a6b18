package draft

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"sqlite", func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "drafts.db"))
		if err != nil {
			t.Fatalf("failed to create sqlite store: %v", err)
		}
		return s
	}},
	{"file", func(t *testing.T) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "drafts.json"))
	}},
	{"memory", func(t *testing.T) Store {
		return NewMemoryStore()
	}},
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			want := Draft{Message: "draft", FileIDs: []string{"f1"}}
			if err := s.Save(ctx, "S", want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Get(ctx, "S")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got == nil {
				t.Fatal("expected draft to exist")
			}
			if diff := cmp.Diff(want, *got); diff != "" {
				t.Fatalf("draft mismatch (-want +got):\n%s", diff)
			}

			if err := s.Clear(ctx, "S"); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			got, err = s.Get(ctx, "S")
			if err != nil {
				t.Fatalf("Get after clear: %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil after clear, got %+v", got)
			}
		})
	}
}

func TestStoreSaveEmptyRemoves(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			if err := s.Save(ctx, "S", Draft{Message: "keep"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, "S", Draft{Message: "   "}); err != nil {
				t.Fatalf("Save empty: %v", err)
			}
			if got, _ := s.Get(ctx, "S"); got != nil {
				t.Fatalf("expected empty save to remove entry, got %+v", got)
			}

			// Files alone are worth keeping.
			if err := s.Save(ctx, "S", Draft{FileIDs: []string{"f2"}}); err != nil {
				t.Fatalf("Save files-only: %v", err)
			}
			if got, _ := s.Get(ctx, "S"); got == nil || len(got.FileIDs) != 1 {
				t.Fatalf("expected files-only draft, got %+v", got)
			}
		})
	}
}

func TestStoreListAndClearAll(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			s.Save(ctx, "a", Draft{Message: "one"})
			s.Save(ctx, "b", Draft{Message: "two", FileIDs: []string{"x", "y"}})

			all, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := map[string]Draft{
				"a": {Message: "one", FileIDs: []string{}},
				"b": {Message: "two", FileIDs: []string{"x", "y"}},
			}
			if diff := cmp.Diff(want, all); diff != "" {
				t.Fatalf("list mismatch (-want +got):\n%s", diff)
			}

			if err := s.ClearAll(ctx); err != nil {
				t.Fatalf("ClearAll: %v", err)
			}
			all, err = s.List(ctx)
			if err != nil {
				t.Fatalf("List after ClearAll: %v", err)
			}
			if len(all) != 0 {
				t.Fatalf("expected no drafts, got %v", all)
			}
		})
	}
}

func TestStoreIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			s.Save(ctx, "a", Draft{Message: "one"})
			s.Save(ctx, "b", Draft{Message: "two"})
			s.Clear(ctx, "a")
			if got, _ := s.Get(ctx, "b"); got == nil || got.Message != "two" {
				t.Fatalf("clearing a affected b: %+v", got)
			}
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "drafts.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	if err := s.Save(ctx, "S", Draft{Message: "draft", FileIDs: []string{"f1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file at %q: %v", path, err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen sqlite store: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "S")
	if err != nil || got == nil || got.Message != "draft" {
		t.Fatalf("Get after reopen = %+v, %v", got, err)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Get(context.Background(), "S"); err == nil {
		t.Fatal("expected error for corrupt drafts file")
	}
}

func TestOpen(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"sqlite", false},
		{"FILE", false},
		{"memory", false},
		{"none", false},
		{"redis", true},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := Open(Config{Backend: tc.backend})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			s.Close()
		})
	}
}

func TestNoopStore(t *testing.T) {
	ctx := context.Background()
	s := &NoopStore{}
	if err := s.Save(ctx, "S", Draft{Message: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err := s.Get(ctx, "S"); got != nil || err != nil {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}
