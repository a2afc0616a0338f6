package browser

import (
	"context"
	"log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notifier delivers transient messages to the admin who owns a browser.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct {
	Prefix string
}

func (n LogNotifier) Notify(_ context.Context, level Level, message string) {
	log.Printf("%s[%s] %s", n.Prefix, level, message)
}

// ValidationError blocks an action before any request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
