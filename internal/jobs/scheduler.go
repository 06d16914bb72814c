package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tutorbridge/backend/internal/meeting"
)

const adHocRetention = 180 * 24 * time.Hour

// Scheduler manages background jobs
type Scheduler struct {
	cron      *cron.Cron
	permanent *meeting.PermanentLinkService
	adhoc     *meeting.AdHocService
}

// NewScheduler creates a new job scheduler
func NewScheduler(permanent *meeting.PermanentLinkService, adhoc *meeting.AdHocService) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		permanent: permanent,
		adhoc:     adhoc,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Release provisioning leases from crashed instances hourly at minute 5
	s.cron.AddFunc("5 * * * *", func() {
		cleared, err := s.permanent.ClearExpiredLeases(context.Background())
		if err != nil {
			log.Printf("Failed to clear expired leases: %v", err)
			return
		}
		if cleared > 0 {
			log.Printf("Cleared %d expired provisioning leases", cleared)
		}
	})

	// Audit permanent links daily at 3:10 AM
	s.cron.AddFunc("10 3 * * *", func() {
		log.Println("Running permanent link audit...")
		checked, invalidated, err := s.permanent.AuditSweep(context.Background())
		if err != nil {
			log.Printf("Permanent link audit failed: %v", err)
			return
		}
		log.Printf("Permanent link audit: %d checked, %d invalidated", checked, invalidated)
	})

	// Purge finished ad-hoc meeting records daily at 3:40 AM
	s.cron.AddFunc("40 3 * * *", func() {
		log.Println("Running ad-hoc meeting cleanup...")
		purged, err := s.adhoc.PurgeFinished(context.Background(), adHocRetention)
		if err != nil {
			log.Printf("Failed to purge finished meetings: %v", err)
			return
		}
		log.Printf("Purged %d finished ad-hoc meetings", purged)
	})

	s.cron.Start()
	log.Println("Job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Job scheduler stopped")
}
