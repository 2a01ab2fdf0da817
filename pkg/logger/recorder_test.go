package logger_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealodm/pkg/logger"
)

func TestRecordingHandler(t *testing.T) {
	t.Parallel()

	log, rec := logger.Recording()
	log.Info("Application started")
	log.Warn("Cache miss", "key", "user:123")
	log.Error("Database connection failed", "retry", 3)
	log.Debug("debug message")

	assert.Equal(t, []string{
		"[0] INFO: Application started",
		"[1] WARN: Cache miss key=user:123",
		"[2] ERROR: Database connection failed retry=3",
		"[3] DEBUG: debug message",
	}, rec.Lines())
	assert.Equal(t, []string{
		"Application started",
		"Cache miss",
		"Database connection failed",
		"debug message",
	}, rec.Messages())
}

func TestRecordingHandler_ignoreDebug(t *testing.T) {
	t.Parallel()

	log, rec := logger.Recording(logger.IgnoreDebug())
	log.Debug("hidden")
	log.Info("shown")

	assert.Equal(t, []string{"[0] INFO: shown"}, rec.Lines())
}

func TestRecordingHandler_attrsAndGroups(t *testing.T) {
	t.Parallel()

	h := logger.NewRecordingHandler()
	l := slog.New(h).With("model", "User").WithGroup("doc")
	l.Info("saved", "id", "u1", slog.Group("diff", slog.String("name", "b")))

	assert.Equal(t, []string{"[0] INFO: saved model=User, doc.id=u1, doc.diff.name=b"}, h.Lines())
}
