package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"enrolldesk-backend/internal/services"
)

// Pool consumes queued dashboard sync requests. Only one sync runs at a
// time: a redis lock makes duplicate triggers coalesce while a job is in
// flight instead of hammering Moodle twice.
type Pool struct {
	redis       *redis.Client
	syncService *services.SyncService
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, syncService *services.SyncService, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		syncService: syncService,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d sync worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, services.SyncQueueKey).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job services.SyncJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse sync job: %v", id, err)
			continue
		}

		// A sync that is already running owns the lock; drop the duplicate.
		locked, err := p.redis.SetNX(ctx, services.SyncLockKey, job.ID, 30*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Worker %d: running dashboard sync %s (requested by %s)", id, job.ID, job.RequestedBy)
		p.runJob(ctx, &job)

		p.redis.Del(ctx, services.SyncLockKey)
	}
}

func (p *Pool) runJob(ctx context.Context, job *services.SyncJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Sync %s panicked: %v", job.ID, r)
			p.syncService.Fail(ctx, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	if err := p.syncService.Run(ctx); err != nil {
		log.Printf("Sync %s failed: %v", job.ID, err)
	}
}
