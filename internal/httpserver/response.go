package httpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorhttpd/internal/buffer"
)

// statusTable mirrors server/protocol/builder.go's flat status lookup,
// extended with the reason strings CODE_STATUS names.
var statusTable = map[int]string{
	200: "200 OK",
	400: "400 Bad Request",
	403: "403 Forbidden",
	404: "404 Not Found",
}

// codePath mirrors CODE_PATH: an error code rewrites the response path to
// one of the bundled error pages before re-stat.
var codePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// suffixType is the Glossary's "MIME suffix map": extension -> content
// type, defaulting to text/plain for anything unlisted.
var suffixType = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".xml":  "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".pdf":  "application/pdf",
	".word": "application/nsword",
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".au":   "audio/basic",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".avi":  "video/x-msvideo",
	".gz":   "application/x-gzip",
	".tar":  "application/x-tar",
	".css":  "text/css",
	".js":   "text/javascript",
}

// MappedFile is the response builder's mapped body region, released
// exactly once via Unmap.
type MappedFile struct {
	data []byte
}

// Bytes returns the mapped content, or nil if nothing is mapped.
func (m *MappedFile) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Len reports the mapped length; invariant 4 (spec.md §8) treats
// length > 0 as "a mapping exists".
func (m *MappedFile) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// Unmap releases the mapping; idempotent, matching HttpResponse::UnmapFile.
func (m *MappedFile) Unmap() {
	if m == nil || m.data == nil {
		return
	}
	unix.Munmap(m.data)
	m.data = nil
}

// Response mirrors HttpResponse: response state plus the machinery to
// resolve a path under srcDir, stat it, and build headers into a Buffer.
type Response struct {
	Code      int
	KeepAlive bool
	SrcDir    string
	Path      string
	Mapped    *MappedFile
}

// NewResponse mirrors HttpResponse::Init: code < 0 means "unset, decide
// after stat".
func NewResponse(srcDir, path string, keepAlive bool, code int) *Response {
	return &Response{SrcDir: srcDir, Path: path, KeepAlive: keepAlive, Code: code}
}

// MakeResponse resolves the file, decides the status code, and writes the
// status line + headers into out, with Content-length set to the body
// size. The body is left in r.Mapped (or, when the file cannot be mapped,
// appended to out as an inline error page); the caller gather-writes out
// plus r.Mapped. The returned error is always nil.
func (r *Response) MakeResponse(out *buffer.Buffer) error {
	full := filepath.Join(r.SrcDir, r.Path)
	info, err := os.Stat(full)
	switch {
	case err != nil:
		r.Code = 404
	case info.IsDir():
		r.Code = 400
	case !info.Mode().IsRegular():
		r.Code = 400
	case info.Mode().Perm()&0o004 == 0:
		r.Code = 403
	default:
		if r.Code < 0 {
			r.Code = 200
		}
	}

	if altPath, ok := codePath[r.Code]; ok && r.Code != 200 {
		r.Path = altPath
		full = filepath.Join(r.SrcDir, r.Path)
		if info2, err2 := os.Stat(full); err2 == nil {
			info = info2
		} else {
			info = nil
		}
	}

	r.addStateLine(out)

	// The body must be resolved (mapped, or replaced with an inline error
	// body on open/mmap failure) before the header is written, since
	// Content-length has to announce the body that actually gets sent.
	body, mapped := r.resolveBody(full, info)
	r.addHeader(out, int64(len(body)))
	if mapped {
		r.Mapped = &MappedFile{data: body}
	} else {
		r.Mapped = &MappedFile{}
		if len(body) > 0 {
			out.Append(body)
		}
	}
	return nil
}

func (r *Response) addStateLine(out *buffer.Buffer) {
	status, ok := statusTable[r.Code]
	if !ok {
		status = "400 Bad Request"
	}
	out.Append([]byte("HTTP/1.1 " + status + "\r\n"))
}

func (r *Response) addHeader(out *buffer.Buffer, size int64) {
	if r.KeepAlive {
		out.Append([]byte("Connection: keep-alive\r\n"))
		out.Append([]byte("keep-alive: max=6, timeout=120\r\n"))
	} else {
		out.Append([]byte("Connection: close\r\n"))
	}
	out.Append([]byte("Content-type: " + r.mimeType() + "\r\n"))
	out.Append([]byte(fmt.Sprintf("Content-length: %d\r\n", size)))
	out.Append([]byte("\r\n"))
}

func (r *Response) mimeType() string {
	ext := strings.ToLower(filepath.Ext(r.Path))
	if t, ok := suffixType[ext]; ok {
		return t
	}
	return "text/plain"
}

// resolveBody maps the file into memory per spec.md §4.9.4, returning the
// mapped region and mapped=true; on an open/mmap failure it returns an
// inline error body instead, matching ErrorContent, with mapped=false so
// the caller appends it straight into the header buffer.
func (r *Response) resolveBody(full string, info os.FileInfo) (body []byte, mapped bool) {
	if info == nil || info.Size() == 0 {
		return nil, false
	}

	f, err := os.Open(full)
	if err != nil {
		return r.errorBody("File NotFound!"), false
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return r.errorBody("File NotFound!"), false
	}
	return data, true
}

// errorBody builds the inline HTML body HttpResponse::ErrorContent writes
// when the file can't be mapped.
func (r *Response) errorBody(message string) []byte {
	status := statusTable[r.Code]
	if status == "" {
		status = "400 Bad Request"
	}
	return []byte(fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">%s: %s</body></html>",
		status, message,
	))
}

// Close releases the mapped region; idempotent.
func (r *Response) Close() {
	r.Mapped.Unmap()
}
