package applog

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestSyncWriteGoesToFileImmediately(t *testing.T) {
	dir := t.TempDir()
	l, err := Init(Info, dir, ".log", 0) // queueCapacity <= 0 => synchronous
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Infof("hello %s", "world")
	l.Flush()

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a log file to exist, dir entries=%v err=%v", entries, err)
	}
	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Fatalf("log file does not contain expected line: %q", data)
	}
}

func TestAsyncWriteIsDrained(t *testing.T) {
	dir := t.TempDir()
	l, err := Init(Debug, dir, ".log", 16)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Infof("async line")
	l.Flush()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(dir)
		if len(entries) > 0 {
			data, _ := os.ReadFile(dir + "/" + entries[0].Name())
			if strings.Contains(string(data), "async line") {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("async line never appeared in log file")
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	l, err := Init(Warn, dir, ".log", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Infof("should be filtered out")
	l.Warnf("should appear")
	l.Flush()

	entries, _ := os.ReadDir(dir)
	data, _ := os.ReadFile(dir + "/" + entries[0].Name())
	if strings.Contains(string(data), "filtered out") {
		t.Fatal("info line should have been filtered by Warn level")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Fatal("warn line should have been written")
	}
}

func TestSetLevelChangesFiltering(t *testing.T) {
	dir := t.TempDir()
	l, err := Init(Error, dir, ".log", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.SetLevel(Debug)
	if l.GetLevel() != Debug {
		t.Fatalf("GetLevel = %v, want Debug", l.GetLevel())
	}
}
