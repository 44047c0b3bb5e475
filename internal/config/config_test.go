package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Port: 1316, TriggerMode: 3, OptLinger: false,
		DBPoolSize: 12, ThreadNum: 6, LogEnabled: true, LogLevel: 1,
		LogQueueSize: 1024, TimeoutMS: defaultTimeoutMS,
		DBHost: "localhost", DBPort: 3306, DBUser: "root", DBName: "webserver",
	}
	if cfg.Port != want.Port || cfg.TriggerMode != want.TriggerMode ||
		cfg.OptLinger != want.OptLinger || cfg.DBPoolSize != want.DBPoolSize ||
		cfg.ThreadNum != want.ThreadNum || cfg.LogEnabled != want.LogEnabled ||
		cfg.LogLevel != want.LogLevel || cfg.LogQueueSize != want.LogQueueSize ||
		cfg.TimeoutMS != want.TimeoutMS {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]string{"-p", "9000", "-m", "0", "-o", "1", "-q", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.TriggerMode != 0 {
		t.Fatalf("TriggerMode = %d, want 0", cfg.TriggerMode)
	}
	if !cfg.OptLinger {
		t.Fatal("expected OptLinger true")
	}
	if cfg.LogQueueSize != 0 {
		t.Fatalf("LogQueueSize = %d, want 0 (synchronous)", cfg.LogQueueSize)
	}
}

func TestParseInvalidFlagReturnsError(t *testing.T) {
	if _, err := Parse([]string{"-p", "not-a-number"}); err == nil {
		t.Fatal("expected an error for a non-numeric -p")
	}
}
