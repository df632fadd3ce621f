package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/moodle"
)

const (
	// SyncQueueKey is the redis list the worker pool consumes.
	SyncQueueKey = "queue:dashboard-sync"
	// SyncChannel carries progress updates to the websocket hub.
	SyncChannel = "sync_updates"
	// SyncLockKey coalesces concurrent triggers into one running job.
	SyncLockKey = "sync_lock"
)

// DashboardStore persists the single latest aggregate snapshot.
type DashboardStore interface {
	GetLatest(ctx context.Context) (*models.DashboardSnapshot, error)
	UpsertLatest(ctx context.Context, snap *models.DashboardSnapshot) error
	SetStatus(ctx context.Context, status, syncError string) error
}

// SuspensionReader exposes the locally-recorded course suspensions for
// cross-referencing.
type SuspensionReader interface {
	ListSuspended(ctx context.Context) ([]models.SuspensionStatusRecord, error)
}

type SyncJob struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// SyncService walks Courses x Users through the Moodle client and writes the
// four derived reports into the snapshot. Remote failures degrade the
// affected step to an empty contribution; only an unexpected failure marks
// the whole sync as errored. There is no rollback and no cancellation: a
// started sync runs to completion or failure.
type SyncService struct {
	client         *moodle.Client
	searcher       *moodle.Searcher
	dashboard      DashboardStore
	suspensions    SuspensionReader
	redis          *redis.Client // nil disables queueing and progress updates
	batchWidth     int
	batchPause     time.Duration
	excludedCourse string
}

func NewSyncService(
	client *moodle.Client,
	searcher *moodle.Searcher,
	dashboard DashboardStore,
	suspensions SuspensionReader,
	redisClient *redis.Client,
	batchWidth int,
	batchPause time.Duration,
	excludedCourse string,
) *SyncService {
	if batchWidth <= 0 {
		batchWidth = 5
	}
	return &SyncService{
		client:         client,
		searcher:       searcher,
		dashboard:      dashboard,
		suspensions:    suspensions,
		redis:          redisClient,
		batchWidth:     batchWidth,
		batchPause:     batchPause,
		excludedCourse: excludedCourse,
	}
}

// Enqueue pushes a sync request onto the queue and marks the snapshot
// pending. The worker pool picks it up.
func (s *SyncService) Enqueue(ctx context.Context, requestedBy string) (*SyncJob, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("sync queue is not configured")
	}

	job := &SyncJob{
		ID:          uuid.NewString(),
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	if err := s.redis.RPush(ctx, SyncQueueKey, data).Err(); err != nil {
		return nil, err
	}

	if err := s.dashboard.SetStatus(ctx, models.SyncPending, ""); err != nil {
		log.Printf("sync: failed to mark snapshot pending: %v", err)
	}
	return job, nil
}

// Run executes one full sync.
func (s *SyncService) Run(ctx context.Context) error {
	if err := s.dashboard.SetStatus(ctx, models.SyncInProgress, ""); err != nil {
		log.Printf("sync: failed to mark snapshot in progress: %v", err)
	}

	snap := &models.DashboardSnapshot{
		GloballySuspended:    []models.SuspendedUser{},
		MultiCourseUsers:     []models.MultiCourseUser{},
		NeverAccessedUsers:   []models.NeverAccessedUser{},
		CourseSuspendedUsers: []models.CourseSuspendedUser{},
		SyncStatus:           models.SyncCompleted,
	}

	s.publish(ctx, 1, "Fetching courses", models.SyncInProgress)
	courses, err := s.client.GetCourses(ctx)
	if err != nil {
		log.Printf("sync: course listing failed, continuing with none: %v", err)
		courses = nil
	}
	snap.TotalCourses = len(courses)

	s.publish(ctx, 2, "Scanning users", models.SyncInProgress)
	users, err := s.searcher.ScanAll(ctx)
	if err != nil {
		log.Printf("sync: user scan failed, continuing with none: %v", err)
		users = nil
	}
	snap.TotalUsers = len(users)

	s.publish(ctx, 3, "Fetching enrollments", models.SyncInProgress)
	enrollments := s.fetchEnrollments(ctx, courses)

	s.publish(ctx, 4, "Deriving reports", models.SyncInProgress)
	s.derive(ctx, snap, courses, users, enrollments)

	now := time.Now().UTC()
	snap.LastSync = &now

	if err := s.dashboard.UpsertLatest(ctx, snap); err != nil {
		s.dashboard.SetStatus(ctx, models.SyncError, err.Error())
		s.publish(ctx, 5, "Sync failed", models.SyncError)
		return err
	}

	s.publish(ctx, 5, "Completed", models.SyncCompleted)
	return nil
}

// Fail records an unexpected sync failure on the snapshot.
func (s *SyncService) Fail(ctx context.Context, message string) {
	if err := s.dashboard.SetStatus(ctx, models.SyncError, message); err != nil {
		log.Printf("sync: failed to record error state: %v", err)
	}
	s.publish(ctx, 5, "Sync failed", models.SyncError)
}

// fetchEnrollments fans out the per-course student fetches in fixed-width
// batches with a pause between them. The pause exists only to avoid
// hammering the remote API; it is rate-limiting by convention, not a
// measured backpressure signal. A failed course contributes zero students.
func (s *SyncService) fetchEnrollments(ctx context.Context, courses []moodle.Course) map[int][]moodle.User {
	results := make(map[int][]moodle.User, len(courses))
	var mu sync.Mutex

	for start := 0; start < len(courses); start += s.batchWidth {
		end := start + s.batchWidth
		if end > len(courses) {
			end = len(courses)
		}

		var wg sync.WaitGroup
		for _, course := range courses[start:end] {
			wg.Add(1)
			go func(c moodle.Course) {
				defer wg.Done()
				students, err := s.client.GetEnrolledUsers(ctx, c.ID)
				if err != nil {
					log.Printf("sync: enrolled-users fetch failed for course %d (%s): %v", c.ID, c.ShortName, err)
					return
				}
				mu.Lock()
				results[c.ID] = students
				mu.Unlock()
			}(course)
		}
		wg.Wait()

		if end < len(courses) && s.batchPause > 0 {
			time.Sleep(s.batchPause)
		}
	}

	return results
}

func (s *SyncService) derive(ctx context.Context, snap *models.DashboardSnapshot, courses []moodle.Course, users []moodle.User, enrollments map[int][]moodle.User) {
	courseNames := make(map[int]string, len(courses))
	for _, c := range courses {
		courseNames[c.ID] = c.FullName
	}
	usersByID := make(map[int]moodle.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	for _, u := range users {
		if u.IsSuspended() {
			snap.GloballySuspended = append(snap.GloballySuspended, models.SuspendedUser{
				ID: u.ID, Username: u.Username, FullName: u.FullName(), Email: u.Email,
			})
		}
		if u.NeverAccessed() {
			snap.NeverAccessedUsers = append(snap.NeverAccessedUsers, models.NeverAccessedUser{
				ID: u.ID, Username: u.Username, FullName: u.FullName(), Email: u.Email,
			})
		}
	}

	// Multi-course membership, with one named course excluded from the count
	// (an "everyone is enrolled here" common-area course would put every
	// student in the report).
	type membership struct {
		user    moodle.User
		courses []string
	}
	memberships := make(map[int]*membership)
	for _, c := range courses {
		if s.excludedCourse != "" && strings.EqualFold(c.FullName, s.excludedCourse) {
			continue
		}
		for _, u := range enrollments[c.ID] {
			m, ok := memberships[u.ID]
			if !ok {
				m = &membership{user: u}
				memberships[u.ID] = m
			}
			m.courses = append(m.courses, c.FullName)
		}
	}
	for _, m := range memberships {
		if len(m.courses) > 1 {
			sort.Strings(m.courses)
			snap.MultiCourseUsers = append(snap.MultiCourseUsers, models.MultiCourseUser{
				ID:          m.user.ID,
				Username:    m.user.Username,
				FullName:    m.user.FullName(),
				Email:       m.user.Email,
				CourseCount: len(m.courses),
				Courses:     m.courses,
			})
		}
	}
	sort.Slice(snap.MultiCourseUsers, func(i, j int) bool {
		return snap.MultiCourseUsers[i].ID < snap.MultiCourseUsers[j].ID
	})

	// Per-course suspensions come from the local store: the remote flag
	// alone carries no attribution or reason.
	records, err := s.suspensions.ListSuspended(ctx)
	if err != nil {
		log.Printf("sync: suspension store read failed, continuing with none: %v", err)
		records = nil
	}
	for _, rec := range records {
		entry := models.CourseSuspendedUser{
			UserID:      rec.UserID,
			CourseID:    rec.CourseID,
			CourseName:  courseNames[rec.CourseID],
			SuspendedAt: rec.SuspendedAt,
			SuspendedBy: rec.SuspendedBy,
			Reason:      rec.Reason,
		}
		if u, ok := usersByID[rec.UserID]; ok {
			entry.Username = u.Username
			entry.FullName = u.FullName()
		}
		snap.CourseSuspendedUsers = append(snap.CourseSuspendedUsers, entry)
	}
}

func (s *SyncService) publish(ctx context.Context, step int, name, status string) {
	if s.redis == nil {
		return
	}
	msg := models.WSMessage{
		Type:    "sync_update",
		Payload: models.SyncProgress{Step: step, StepName: name, Status: status},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.redis.Publish(ctx, SyncChannel, data)
}
