// Package config implements the CLI flag surface of spec.md §6, grounded
// on original_source/code/config/config.h's field list, parsed with the
// standard library's flag package per the ambient stack (the teacher pulls
// in no CLI-flags library, and flag is the idiomatic baseline the rest of
// the pack's CLI-facing repos also default to).
package config

import "flag"

// Config mirrors config.h's fields (port_, trigMode_, timeoutMS_,
// OptLinger_, sqlPort_, sqlUser_, sqlPwd_, dbName_, sqlNum_, threadNum_,
// openLog_, logLevel_, logQueSize_), plus the MySQL host/database/user
// values the original reads from its own hardcoded constants.
type Config struct {
	Port          int
	TriggerMode   int
	OptLinger     bool
	DBPoolSize    int
	ThreadNum     int
	LogEnabled    bool
	LogLevel      int
	LogQueueSize  int
	TimeoutMS     int

	DBHost string
	DBPort int
	DBUser string
	DBPwd  string
	DBName string
}

// Default timeout, matching WebServer's hardcoded 60000ms connection
// timeout (not exposed as a flag in the original, so not exposed here).
const defaultTimeoutMS = 60000

// Parse builds a Config from args (typically os.Args[1:]) per spec.md §6's
// flag table: -p port, -m trigger-mode, -o graceful-linger, -s db-pool
// size, -t worker count, -l log enabled, -e log level, -q log queue
// capacity.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("goserver", flag.ContinueOnError)

	cfg := &Config{TimeoutMS: defaultTimeoutMS}
	fs.IntVar(&cfg.Port, "p", 1316, "listen port")
	fs.IntVar(&cfg.TriggerMode, "m", 3, "trigger-mode bitmask 0..3")
	optLinger := fs.Int("o", 0, "graceful linger on close, 0 or 1")
	fs.IntVar(&cfg.DBPoolSize, "s", 12, "db connection pool size")
	fs.IntVar(&cfg.ThreadNum, "t", 6, "worker thread count")
	logEnabled := fs.Int("l", 1, "log enabled, 0 or 1")
	fs.IntVar(&cfg.LogLevel, "e", 1, "log level 0..3")
	fs.IntVar(&cfg.LogQueueSize, "q", 1024, "log queue capacity; <=0 forces synchronous logging")

	fs.StringVar(&cfg.DBHost, "dbhost", "localhost", "mysql host")
	fs.IntVar(&cfg.DBPort, "dbport", 3306, "mysql port")
	fs.StringVar(&cfg.DBUser, "dbuser", "root", "mysql user")
	fs.StringVar(&cfg.DBPwd, "dbpwd", "", "mysql password")
	fs.StringVar(&cfg.DBName, "dbname", "webserver", "mysql database name")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.OptLinger = *optLinger != 0
	cfg.LogEnabled = *logEnabled != 0
	return cfg, nil
}
