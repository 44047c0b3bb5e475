package httpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/s00inx/reactorhttpd/internal/buffer"
)

func TestMakeResponseServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResponse(dir, "/index.html", true, -1)
	out := buffer.New()
	if err := r.MakeResponse(out); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Code != 200 {
		t.Fatalf("code = %d, want 200", r.Code)
	}
	head := out.TakeAllAsString()
	if !strings.HasPrefix(head, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", head)
	}
	if !strings.Contains(head, "Connection: keep-alive") {
		t.Fatalf("expected keep-alive header: %q", head)
	}
	if !strings.Contains(head, "Content-type: text/html") {
		t.Fatalf("expected html content-type: %q", head)
	}
	if r.Mapped.Len() != 5 || string(r.Mapped.Bytes()) != "hello" {
		t.Fatalf("mapped content = %q, want hello", r.Mapped.Bytes())
	}
	if n := strings.Count(head, "Content-length:"); n != 1 {
		t.Fatalf("expected exactly one Content-length header, got %d in %q", n, head)
	}
	if !strings.Contains(head, "Content-length: 5\r\n") {
		t.Fatalf("expected Content-length to match the mapped body size: %q", head)
	}
}

func TestResolveBodyOpenFailureFallsBackToSingleErrorBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "here-then-gone.html")
	if err := os.WriteFile(path, []byte("transient"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	r := NewResponse(dir, "/here-then-gone.html", false, 200)
	body, mapped := r.resolveBody(path, info)
	if mapped {
		t.Fatal("expected mapped=false when os.Open fails")
	}
	if !strings.Contains(string(body), "File NotFound!") {
		t.Fatalf("expected inline error body, got %q", body)
	}

	out := buffer.New()
	r.addHeader(out, int64(len(body)))
	head := out.TakeAllAsString()
	if n := strings.Count(head, "Content-length:"); n != 1 {
		t.Fatalf("expected exactly one Content-length header, got %d in %q", n, head)
	}
	if !strings.Contains(head, fmt.Sprintf("Content-length: %d\r\n", len(body))) {
		t.Fatalf("Content-length does not match fallback error body size: %q", head)
	}
}

func TestResponseWithNonWorldReadableFileIs403(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.html")
	if err := os.WriteFile(path, []byte("shh"), 0o640); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "403.html"), []byte("forbidden"), 0o644)

	r := NewResponse(dir, "/secret.html", false, -1)
	out := buffer.New()
	if err := r.MakeResponse(out); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Code != 403 {
		t.Fatalf("code = %d, want 403 for a non-world-readable file (mode 0640)", r.Code)
	}
}

func TestMakeResponseMissingFileIs404(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "404.html"), []byte("nope"), 0o644)

	r := NewResponse(dir, "/ghost.html", false, -1)
	out := buffer.New()
	if err := r.MakeResponse(out); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Code != 404 {
		t.Fatalf("code = %d, want 404", r.Code)
	}
	if !strings.Contains(out.TakeAllAsString(), "404 Not Found") {
		t.Fatal("expected 404 status line")
	}
}

func TestMakeResponseDirectoryIs400(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "400.html"), []byte("bad"), 0o644)

	r := NewResponse(dir, "/sub", false, -1)
	out := buffer.New()
	r.MakeResponse(out)
	defer r.Close()

	if r.Code != 400 {
		t.Fatalf("code = %d, want 400", r.Code)
	}
}

func TestUnmapIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0o644)

	r := NewResponse(dir, "/index.html", false, -1)
	out := buffer.New()
	r.MakeResponse(out)

	r.Mapped.Unmap()
	r.Mapped.Unmap() // must not panic
	if r.Mapped.Len() != 0 {
		t.Fatal("expected zero length after Unmap")
	}
}

func TestMimeTypeDefaultsToTextPlain(t *testing.T) {
	r := &Response{Path: "/file.unknownext"}
	if got := r.mimeType(); got != "text/plain" {
		t.Fatalf("mimeType = %q, want text/plain", got)
	}
}
