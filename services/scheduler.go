package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Default schedules, in standard five-field cron syntax.
const (
	DefaultRecalcSchedule  = "0 2 * * *"
	DefaultFlushSchedule   = "@hourly"
	DefaultArchiveSchedule = "30 3 * * 0"

	DefaultArchiveAfterDays = 30
	jobTimeout              = 10 * time.Minute
)

// MaintenanceScheduler runs the periodic repair jobs: a full ledger
// recalculation, the activity log flush and the weekly log archive.
type MaintenanceScheduler struct {
	// ArchiveAfterDays is the age at which activity rows are archived.
	ArchiveAfterDays int

	cron     *cron.Cron
	ledger   *RequirementLedger
	activity *ActivityLogService
	log      *logrus.Entry
}

func NewMaintenanceScheduler(ledger *RequirementLedger, activity *ActivityLogService) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		ArchiveAfterDays: DefaultArchiveAfterDays,
		cron:             cron.New(),
		ledger:           ledger,
		activity:         activity,
		log:              logrus.WithField("component", "scheduler"),
	}
}

// Start registers the jobs and starts the cron loop. An empty recalcSpec uses
// DefaultRecalcSchedule.
func (m *MaintenanceScheduler) Start(recalcSpec string) error {
	if recalcSpec == "" {
		recalcSpec = DefaultRecalcSchedule
	}
	if _, err := m.cron.AddFunc(recalcSpec, m.recalculate); err != nil {
		return err
	}
	if m.activity != nil {
		if _, err := m.cron.AddFunc(DefaultFlushSchedule, m.flush); err != nil {
			return err
		}
		if _, err := m.cron.AddFunc(DefaultArchiveSchedule, m.archive); err != nil {
			return err
		}
	}

	m.cron.Start()
	m.log.WithField("recalc", recalcSpec).Info("Maintenance scheduler started")
	return nil
}

// Stop halts the loop and waits for running jobs.
func (m *MaintenanceScheduler) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("Maintenance scheduler stopped")
}

func (m *MaintenanceScheduler) recalculate() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	reqs, err := m.ledger.RecalculateAll(ctx)
	if err != nil {
		m.log.WithError(err).Warn("Scheduled requirement recalculation failed")
		return
	}
	m.log.WithField("requirements", len(reqs)).Info("Requirement counts recalculated")
}

func (m *MaintenanceScheduler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := m.activity.Flush(ctx); err != nil {
		m.log.WithError(err).Warn("periodic activity log flush failed")
	}
}

func (m *MaintenanceScheduler) archive() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := m.activity.Archive(ctx, m.ArchiveAfterDays); err != nil {
		m.log.WithError(err).Warn("periodic activity log archive failed")
	}
}
