package seek

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/supporttools/logcheck/pkg/types"
)

func TestResolveKey(t *testing.T) {
	scratch := t.TempDir()
	keyDir := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "custom.seek")

	tests := []struct {
		name    string
		key     string
		dynamic bool
		want    string
		wantErr bool
	}{
		{name: "derived in scratch dir", want: filepath.Join(scratch, "app.log.seek")},
		{name: "dynamic without key", dynamic: true, wantErr: true},
		{name: "explicit file", key: explicit, dynamic: true, want: explicit},
		{name: "directory key", key: keyDir, dynamic: true, want: filepath.Join(keyDir, "app.log.seek")},
		{name: "null key", key: types.NullSeekKey, dynamic: true, want: types.NullSeekKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveKey(tt.key, scratch, "/var/log/app.log", tt.dynamic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveKey error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveKey = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.seek")
	store := New(path)

	if _, found := store.Load(); found {
		t.Fatal("fresh store should report no offset")
	}

	if err := store.Save(123456); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(42); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	offset, found := store.Load()
	if !found || offset != 42 {
		t.Errorf("Load = %d, %v; want 42, true", offset, found)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "42\n" {
		t.Errorf("seek file must be overwritten, got %q", data)
	}
}

func TestFileStoreUnreadableIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.seek")
	if err := os.WriteFile(path, []byte("not a number"), 0644); err != nil {
		t.Fatal(err)
	}

	if offset, found := New(path).Load(); found || offset != 0 {
		t.Errorf("expected absent offset, got %d %v", offset, found)
	}
}

func TestFileStoreSaveFailureIsIOFault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "app.seek")

	err := New(path).Save(10)
	if err == nil {
		t.Fatal("expected save to fail")
	}
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrIO {
		t.Errorf("expected io fault, got %v", err)
	}
}

func TestNullStore(t *testing.T) {
	store := New(types.NullSeekKey)
	if err := store.Save(99); err != nil {
		t.Fatalf("null store must discard writes, got %v", err)
	}
	if offset, found := store.Load(); found || offset != 0 {
		t.Errorf("null store must always start from zero, got %d %v", offset, found)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		size   int64
		want   int64
	}{
		{"within file", 10, 20, 10},
		{"at end", 20, 20, 20},
		{"rotated", 30, 20, 0},
		{"negative", -1, 20, 0},
	}

	for _, tt := range tests {
		if got := Apply(tt.offset, tt.size); got != tt.want {
			t.Errorf("%s: Apply(%d, %d) = %d, want %d", tt.name, tt.offset, tt.size, got, tt.want)
		}
	}
}

func TestUnchanged(t *testing.T) {
	if !Unchanged(20, 20) {
		t.Error("equal offset and size is unchanged")
	}
	if Unchanged(10, 20) {
		t.Error("growth is not unchanged")
	}
}
