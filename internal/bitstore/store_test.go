package bitstore_test

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"shelfmark/internal/bitstore"
)

func TestPutAndOpen(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entry, err := store.Put("TEXT", "thesis.pdf.txt", bytes.NewReader([]byte("Hello World")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.ID == "" || entry.Bundle != "TEXT" || entry.Name != "thesis.pdf.txt" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Size != int64(len("Hello World")) {
		t.Fatalf("expected size %d, got %d", len("Hello World"), entry.Size)
	}

	reader, err := store.Open(entry.Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != "Hello World" {
		t.Fatalf("round trip mismatch: %q", data)
	}
}

func TestPutEmptyContent(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry, err := store.Put("TEXT", "empty.pdf.txt", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.Size != 0 {
		t.Fatalf("expected zero size, got %d", entry.Size)
	}
}

func TestPutDoesNotClobber(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := store.Put("TEXT", "same.txt", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := store.Put("TEXT", "same.txt", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("expected distinct paths for repeated names")
	}

	entries, err := store.List("TEXT")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestPutSanitizesName(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry, err := store.Put("TEXT", "../escape.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if strings.Contains(entry.Name, "/") {
		t.Fatalf("expected sanitized name, got %q", entry.Name)
	}
	if _, err := os.Stat(entry.Path); err != nil {
		t.Fatalf("entry not at reported path: %v", err)
	}
}

func TestListMissingBundle(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entries, err := store.List("NOPE")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil for missing bundle, got %v", entries)
	}
}

func TestPutValidatesArguments(t *testing.T) {
	store, err := bitstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Put("", "x", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty bundle")
	}
	if _, err := store.Put("TEXT", "  ", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty name")
	}
}
