package marketing

import (
	"flag"
	"log/slog"
	"os"
	"testing"

	"github.com/omtlabs/marketing-bridge/internal/logger"
)

var testLogger *logger.Logger

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Verbose() {
		testLogger = logger.New(logger.Config{Level: slog.LevelDebug})
	} else {
		testLogger = logger.New(logger.Config{Level: slog.LevelError})
	}

	os.Exit(m.Run())
}
