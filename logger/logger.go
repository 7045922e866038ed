package logger

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Init configures the standard logger. An empty file keeps output on stderr.
func Init(level, file string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if file == "" {
		log.SetOutput(os.Stderr)
		return nil
	}
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	log.SetOutput(f)
	log.Debug("Logger initialized")
	return nil
}
