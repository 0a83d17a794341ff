package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"classload/internal/app"
	"classload/internal/config"
)

func main() {
	if err := run(); err != nil {
		logrus.Fatal(err)
	}
}

// run loads configuration, builds the application, and drives it until
// completion or a shutdown signal.
func run() error {
	var (
		configPath = flag.String("config", os.Getenv("CLASSLOAD_CONFIG_FILE"), "path to JSON configuration file")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		rooms      = flag.Int("rooms", 0, "override configured room count")
		students   = flag.Int("students", 0, "override configured students per room")
		quizzes    = flag.Int("quizzes", 0, "override configured quiz count")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger)

	// Precedence: flags > file > environment > defaults.
	cfg := config.LoadWithPrecedence(*configPath)
	if *rooms > 0 {
		cfg.Load.Rooms = *rooms
	}
	if *students > 0 {
		cfg.Load.StudentsPerRoom = *students
	}
	if *quizzes > 0 {
		cfg.Load.QuizCount = *quizzes
	}

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- application.Run(ctx) }()

	select {
	case err = <-runErrCh:
	case sig := <-signalCh:
		log.WithField("signal", sig).Info("shutting down")
		cancel()
		// Let in-flight actors observe the cancellation and classify
		// their disconnects before tearing the process down.
		select {
		case err = <-runErrCh:
		case <-time.After(30 * time.Second):
			err = fmt.Errorf("shutdown timed out")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	return err
}
