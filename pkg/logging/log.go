// Package logging provides leveled log helpers on top of the standard log
// package, with optional rotation of the log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"
)

type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var (
	mode ModeFlag = InfoMode

	// rotating is non-nil while output goes to a rotated file.
	rotating *lumberjack.Logger
)

// Config selects where log messages go.
type Config struct {
	Logfile string `yaml:"logfile" toml:"logfile"`
	MaxSize int    `yaml:"max_log_size" toml:"max_log_size"` // megabytes
	MaxAge  int    `yaml:"max_log_age" toml:"max_log_age"`   // days
	Verbose bool   `yaml:"verbose" toml:"verbose"`
}

// SetLogger applies c: verbose enables Debugf, and a log file switches
// output to a rotating file.
func (c *Config) SetLogger() {
	if c == nil {
		return
	}
	if c.Verbose {
		SetLogMode(DebugMode)
	}
	if c.Logfile == "" {
		Debugf("Sending log messages to stderr since no log file specified.")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	log.SetOutput(l)
	rotating = l
}

// Shutdown closes the log file, if any, and restores stderr output.
func Shutdown() {
	if rotating == nil {
		return
	}
	log.SetOutput(os.Stderr)
	rotating.Close()
	rotating = nil
}

// SetOutput redirects log messages to w.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetLogMode sets the severity required for a log message to be printed.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		log.Printf(" INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		log.Printf(" WARNING "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		log.Printf(" ERROR "+format, args...)
	}
}

// TimeLog adds elapsed time to logging.
//
//	tlog := logging.NewTimeLog()
//	...
//	tlog.Infof("faces counted") // appends time since NewTimeLog
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}

// Count formats a voxel or row count with thousands separators.
func Count(n int64) string {
	return humanize.Comma(n)
}

// Bytes formats a byte size, e.g. "83 MB".
func Bytes(n uint64) string {
	return humanize.Bytes(n)
}
