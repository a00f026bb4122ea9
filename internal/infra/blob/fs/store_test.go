package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tendertriage/internal/blob/core"
)

var _ core.Store = (*Store)(nil)

func TestPlainFileReadable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.csv"), []byte("tender_id\nT1\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, rc, err := s.Get(context.Background(), "main.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if string(body) != "tender_id\nT1\n" || info.Size != int64(len(body)) {
		t.Fatalf("unexpected blob %+v %q", info, body)
	}
	if info.ETag != "" {
		t.Fatalf("plain file should have no etag, got %q", info.ETag)
	}
}

func TestPutWritesSidecar(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(ctx, "exports/run.csv", strings.NewReader("a,b\n"), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"run_id": "r1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size != 4 {
		t.Fatalf("unexpected info %+v", info)
	}
	head, err := s.Head(ctx, "exports/run.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "text/csv" || head.Metadata["run_id"] != "r1" || head.ETag != info.ETag {
		t.Fatalf("sidecar not honoured: %+v", head)
	}
	if _, err := s.Put(ctx, "exports/run.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestMissingAndInvalidKeys(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := s.Get(ctx, "nope.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "nope.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, key := range []string{"", "../escape", "/abs", "x.meta"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestListSkipsSidecars(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.csv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Put(ctx, "exports/a.csv", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Key != "exports/a.csv" || all[1].Key != "main.csv" {
		t.Fatalf("unexpected list %+v", all)
	}
	exports, _ := s.List(ctx, "exports/")
	if len(exports) != 1 {
		t.Fatalf("expected 1 export, got %+v", exports)
	}
	if s.Driver() != core.DriverFilesystem || s.Root() != dir {
		t.Fatalf("unexpected driver/root")
	}
}
