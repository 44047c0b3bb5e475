// Package applog implements the process-wide async logger of spec.md §4.4:
// a level-tagged, queue-fed writer with day/line-count rotation, built as a
// custom zapcore.Core/WriteSyncer pair over internal/queue's bounded deque
// instead of a file-scope C++ singleton.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/s00inx/reactorhttpd/internal/queue"
)

// Level mirrors the four levels the original source's LOG_BASE macro family
// exposes: debug=0, info=1, warn=2, error=3.
type Level int32

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

const maxLines = 50000

// rotatingWriter is a zapcore.WriteSyncer that rolls to a new file when the
// local date changes or every maxLines lines, naming files
// dir/YYYY_MM_DD.log then dir/YYYY_MM_DD-N.log per spec.md §6.
type rotatingWriter struct {
	mu        sync.Mutex
	dir       string
	suffix    string
	f         *os.File
	today     int
	lineCount int
	seq       int
}

func newRotatingWriter(dir, suffix string) (*rotatingWriter, error) {
	w := &rotatingWriter{dir: dir, suffix: suffix}
	if err := w.rotateLocked(time.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.Day() != w.today || (w.lineCount != 0 && w.lineCount%maxLines == 0) {
		if err := w.rotateLocked(now); err != nil {
			return 0, err
		}
	}
	w.lineCount++
	return w.f.Write(p)
}

func (w *rotatingWriter) rotateLocked(now time.Time) error {
	if err := os.MkdirAll(w.dir, 0o777); err != nil {
		return err
	}

	dayChanged := now.Day() != w.today
	if dayChanged {
		w.today = now.Day()
		w.lineCount = 0
		w.seq = 0
	} else {
		w.seq = w.lineCount / maxLines
	}

	var name string
	if w.seq == 0 {
		name = fmt.Sprintf("%04d_%02d_%02d%s", now.Year(), now.Month(), now.Day(), w.suffix)
	} else {
		name = fmt.Sprintf("%04d_%02d_%02d-%d%s", now.Year(), now.Month(), now.Day(), w.seq, w.suffix)
	}

	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if w.f != nil {
		w.f.Sync()
		w.f.Close()
	}
	w.f = f
	return nil
}

func (w *rotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}

// Logger is the async logger of spec.md §4.4, usable as a long-lived value
// passed via a context object rather than a file-scope singleton.
type Logger struct {
	zap     *zap.Logger
	core    *asyncCore
	writer  *rotatingWriter
	writeWG sync.WaitGroup
}

// Init constructs a Logger. queueCapacity <= 0 forces synchronous writes
// (the formatted line is written immediately, under a mutex); otherwise a
// dedicated writer goroutine drains a bounded queue fed by Write.
func Init(level Level, dir, suffix string, queueCapacity int) (*Logger, error) {
	w, err := newRotatingWriter(dir, suffix)
	if err != nil {
		return nil, err
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		MessageKey:  "msg",
		EncodeTime:  zapcore.ISO8601TimeEncoder,
		EncodeLevel: zapcore.CapitalLevelEncoder,
		LineEnding:  "\n",
	})

	core := &asyncCore{
		levelVal: int32(level),
		enc:      enc,
		writer:   w,
	}
	core.isOpen.Store(1)

	if queueCapacity > 0 {
		core.async = true
		core.q = queue.New(queueCapacity)
	}

	l := &Logger{zap: zap.New(core), core: core, writer: w}
	if core.async {
		l.writeWG.Add(1)
		go l.drain()
	}
	return l, nil
}

func (l *Logger) drain() {
	defer l.writeWG.Done()
	for {
		item, ok := l.core.q.Pop()
		if !ok {
			return
		}
		l.writer.Write(item.([]byte))
	}
}

// IsOpen reports whether the logger is accepting writes.
func (l *Logger) IsOpen() bool { return l.core.isOpenVal() }

// SetLevel changes the minimum level accepted going forward.
func (l *Logger) SetLevel(level Level) { l.core.setLevel(level) }

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() Level { return Level(l.core.levelValAtomic()) }

// Write assembles a level-tagged line and either enqueues it (async) or
// writes it immediately (sync), matching Log::write.
func (l *Logger) Write(level Level, format string, args ...any) {
	if !l.IsOpen() || level < l.GetLevel() {
		return
	}
	l.zap.Check(level.zapLevel(), fmt.Sprintf(format, args...)).Write()
}

func (l *Logger) Debugf(format string, args ...any) { l.Write(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Write(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Write(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Write(Error, format, args...) }

// Flush nudges the writer (one wakeup, matching BlockDeque::flush) and
// syncs the current file.
func (l *Logger) Flush() {
	if l.core.async {
		l.core.q.Flush()
	}
	l.writer.Sync()
}

// Close shuts the logger down: closes the queue (waking the writer
// goroutine), joins it, and closes the underlying file.
func (l *Logger) Close() error {
	l.core.isOpen.Store(0)
	if l.core.async {
		for !l.core.q.Empty() {
			l.core.q.Flush()
		}
		l.core.q.Close()
		l.writeWG.Wait()
	}
	return l.writer.Close()
}

// asyncCore is a zapcore.Core that either writes synchronously under mu or
// pushes the fully-encoded line onto a bounded queue for a dedicated writer
// goroutine to drain, per spec.md §4.4.
type asyncCore struct {
	mu       sync.Mutex
	levelVal int32 // atomic-ish guarded by mu, mirrors Log::level_
	isOpen   atomicBool
	enc      zapcore.Encoder
	writer   *rotatingWriter
	async    bool
	q        *queue.Queue
}

type atomicBool struct {
	v int32
}

func (a *atomicBool) Store(v int32) { a.v = v }
func (a *atomicBool) Load() int32   { return a.v }

func (c *asyncCore) isOpenVal() bool {
	return c.isOpen.Load() != 0
}

func (c *asyncCore) setLevel(l Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levelVal = int32(l)
}

func (c *asyncCore) levelValAtomic() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levelVal
}

func (c *asyncCore) Enabled(lvl zapcore.Level) bool { return true }

func (c *asyncCore) With(fields []zapcore.Field) zapcore.Core { return c }

func (c *asyncCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(ent, c)
}

func (c *asyncCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := append([]byte(nil), buf.Bytes()...)
	buf.Free()

	if c.async {
		// PushBack blocks when the queue is at capacity rather than
		// falling back to a concurrent direct write, which would let the
		// drain goroutine and this caller race on the same file and
		// reorder lines.
		c.q.PushBack(line)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.writer.Write(line)
	return err
}

func (c *asyncCore) Sync() error { return c.writer.Sync() }
