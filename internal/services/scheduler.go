package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"lotbid/internal/domain"
	"lotbid/pkg/logger"
	"lotbid/pkg/utils"
)

// CronLotScheduler persists activation/settlement jobs and polls for due
// ones. Jobs that fail stay pending and are retried on the next tick.
type CronLotScheduler struct {
	cron       *cron.Cron
	repo       domain.SchedulerRepository
	lotManager *LotManager
	settlement *SettlementService
	log        logger.Logger
}

func NewCronLotScheduler(repo domain.SchedulerRepository, lotManager *LotManager,
	settlement *SettlementService, log logger.Logger) *CronLotScheduler {
	return &CronLotScheduler{
		cron:       cron.New(cron.WithSeconds()),
		repo:       repo,
		lotManager: lotManager,
		settlement: settlement,
		log:        log,
	}
}

func (s *CronLotScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lot scheduler")

	_, err := s.cron.AddFunc("@every 1m", func() {
		s.processPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronLotScheduler) Stop() error {
	s.log.Info("Stopping lot scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronLotScheduler) ScheduleLotActivation(ctx context.Context, lotID string, startTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		LotID:     lotID,
		JobType:   domain.JobActivateLot,
		RunAt:     startTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}
	return s.repo.CreateJob(ctx, job)
}

func (s *CronLotScheduler) ScheduleLotSettlement(ctx context.Context, lotID string, endTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		LotID:     lotID,
		JobType:   domain.JobSettleLot,
		RunAt:     endTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}
	return s.repo.CreateJob(ctx, job)
}

// RescheduleLotSettlement replaces the pending close job after a soft-close
// extension moved the lot's end datetime.
func (s *CronLotScheduler) RescheduleLotSettlement(ctx context.Context, lotID string, newEndTime time.Time) error {
	if err := s.repo.CancelJobsForLot(ctx, lotID); err != nil {
		return err
	}
	return s.ScheduleLotSettlement(ctx, lotID, newEndTime)
}

func (s *CronLotScheduler) CancelSchedule(ctx context.Context, lotID string) error {
	return s.repo.CancelJobsForLot(ctx, lotID)
}

func (s *CronLotScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "lot_id", job.LotID)

		var err error
		switch job.JobType {
		case domain.JobActivateLot:
			err = s.lotManager.ActivateLot(ctx, job.LotID)
		case domain.JobSettleLot:
			err = s.settlement.SettleLot(ctx, job.LotID)
		}

		if err != nil {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			// stays pending, retried next tick
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}
