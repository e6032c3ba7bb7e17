package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ralt/apm/internal/cli"
	"github.com/ralt/apm/internal/models"
	"github.com/sirupsen/logrus"
)

// exitCode lets scripts tell a missing alias or config apart from other
// failures
func exitCode(err error) int {
	kind, ok := models.KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case models.ErrAliasNotFoundType:
		return 2
	case models.ErrConfigLoad, models.ErrInvalidConfig:
		return 3
	case models.ErrPersist:
		return 4
	default:
		return 1
	}
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := cli.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logrus.Error(err)
		os.Exit(exitCode(err))
	}
}
