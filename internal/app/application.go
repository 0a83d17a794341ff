// Package app wires the harness together: configuration, logging,
// metrics, the REST client, the room orchestrator, and the end-of-run
// report.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"classload/internal/actor"
	"classload/internal/config"
	"classload/internal/metrics"
	"classload/internal/report"
	"classload/internal/restapi"
	"classload/internal/room"
)

// Application owns every component of one load run.
type Application struct {
	cfg   *config.Config
	log   *logrus.Entry
	mem   *metrics.Memory
	rec   metrics.Recorder
	store *report.Store
	orch  *room.Orchestrator

	metricsServer *http.Server
}

// NewApplication validates the configuration and initializes components
// in dependency order: report store, metrics, REST client, orchestrator.
func NewApplication(cfg *config.Config, log *logrus.Entry) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	store, err := report.Open(cfg.Report.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("initialize report store: %w", err)
	}

	app := &Application{
		cfg:   cfg,
		log:   log,
		mem:   metrics.NewMemory(),
		store: store,
	}

	// The in-memory recorder always runs; it feeds the stored report.
	// Prometheus is layered on only when the live endpoint is enabled.
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		app.rec = metrics.Multi{app.mem, metrics.NewPrometheus(registry)}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		app.metricsServer = &http.Server{
			Addr:         cfg.Metrics.ListenAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	} else {
		app.rec = app.mem
	}

	api := restapi.NewHTTPClient(restapi.Config{
		BaseURL:      cfg.Target.BaseURL,
		TeacherToken: cfg.Target.TeacherToken,
		CollectionID: cfg.Target.CollectionID,
	}, log)

	app.orch = room.NewOrchestrator(room.Config{
		SocketURL:       cfg.Target.SocketURL,
		StudentsPerRoom: cfg.Load.StudentsPerRoom,
		Timing:          cfg.TimingPolicy(),
		Retry:           cfg.RetryPolicy(),
		TeacherAuth: actor.TeacherAuth{
			AccessToken: cfg.Target.TeacherToken,
			OrgID:       cfg.Target.OrgID,
			Name:        cfg.Target.TeacherName,
			Region:      cfg.Target.Region,
		},
		QuizCount:      cfg.Load.QuizCount,
		QuizInterval:   cfg.Load.QuizInterval,
		StartJitterMax: cfg.Load.StartJitterMax,
	}, api, app.rec, log)

	return app, nil
}

// Run executes every room concurrently, waits for all of them, and
// persists the run summary. A room whose setup fails is counted as
// fully failed without aborting the other rooms.
func (a *Application) Run(ctx context.Context) error {
	runID := uuid.NewString()
	started := time.Now()

	a.log.WithFields(logrus.Fields{
		"run_id":            runID,
		"rooms":             a.cfg.Load.Rooms,
		"students_per_room": a.cfg.Load.StudentsPerRoom,
		"quiz_count":        a.cfg.Load.QuizCount,
	}).Info("starting load run")

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.WithError(err).Warn("metrics endpoint failed")
			}
		}()
	}

	results := make([]room.Result, a.cfg.Load.Rooms)
	errs := make([]error, a.cfg.Load.Rooms)

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Load.Rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.orch.RunRoom(ctx, i)
		}(i)
	}
	wg.Wait()

	record := report.RunRecord{
		ID:              runID,
		StartedAt:       started,
		FinishedAt:      time.Now(),
		Rooms:           a.cfg.Load.Rooms,
		StudentsPerRoom: a.cfg.Load.StudentsPerRoom,
		QuizCount:       a.cfg.Load.QuizCount,
	}

	var setupFailures int
	for i, err := range errs {
		if err != nil {
			setupFailures++
			record.StudentsFailed += a.cfg.Load.StudentsPerRoom
			a.log.WithError(err).WithField("room_index", i).Error("room aborted")
			continue
		}
		if results[i].TeacherOK {
			record.TeachersOK++
		}
		record.StudentsOK += results[i].StudentsOK
		record.StudentsFailed += results[i].StudentsFailed
	}

	if err := a.store.SaveRun(ctx, record, a.mem.Snapshot()); err != nil {
		a.log.WithError(err).Error("saving run report failed")
	}

	a.log.WithFields(logrus.Fields{
		"run_id":          runID,
		"duration":        record.FinishedAt.Sub(record.StartedAt),
		"teachers_ok":     record.TeachersOK,
		"students_ok":     record.StudentsOK,
		"students_failed": record.StudentsFailed,
		"rooms_aborted":   setupFailures,
	}).Info("load run finished")

	if setupFailures == a.cfg.Load.Rooms {
		return fmt.Errorf("all %d rooms failed setup", a.cfg.Load.Rooms)
	}
	return nil
}

// Shutdown releases the application's resources.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("metrics endpoint shutdown failed")
		}
	}
	return a.store.Close()
}
