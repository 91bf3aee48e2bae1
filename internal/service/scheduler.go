package service

import (
	"context"
	"sync"

	"deeplink/internal/utils"

	"github.com/robfig/cron/v3"
)

const DefaultWatchSchedule = "0 3 * * *"

type Scheduler struct {
	Cron    *cron.Cron
	Monitor *MonitorService
	// Workers caps concurrent revalidations in one job run.
	Workers int
}

func NewScheduler(m *MonitorService) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(),
		Monitor: m,
		Workers: 4,
	}
}

// Start registers the watch job on spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultWatchSchedule
	}
	if _, err := s.Cron.AddFunc(spec, func() {
		s.RunWatchJob(context.Background())
	}); err != nil {
		return err
	}
	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("schedule", spec))
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
}

// RunWatchJob revalidates every watched domain.
func (s *Scheduler) RunWatchJob(ctx context.Context) {
	domains, err := s.Monitor.Storage.GetWatchedDomains(ctx)
	if err != nil {
		utils.Log.Error("scheduler error getting domains", utils.Field("error", err.Error()))
		return
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, domain := range domains {
		wg.Add(1)
		sem <- struct{}{}
		go func(domain string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.Monitor.RunCheck(ctx, domain); err != nil {
				utils.Log.Error("scheduled check failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
			}
		}(domain)
	}
	wg.Wait()
}
