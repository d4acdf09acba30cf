package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"

	"github.com/google/uuid"
)

type project struct {
	items    []int64
	criteria []int64
}

// Store is an in-process Vote Store. Reads always observe the latest writes,
// matching the read-committed visibility the engine expects from Postgres.
type Store struct {
	mu sync.RWMutex

	jobs      map[int64]entities.Job
	projects  map[int64]*project
	tasks     []entities.Task
	finalized map[int64]map[int64]struct{}

	projections map[int64][]entities.ItemTally
	nextTaskID  int64
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs:        make(map[int64]entities.Job),
		projects:    make(map[int64]*project),
		finalized:   make(map[int64]map[int64]struct{}),
		projections: make(map[int64][]entities.ItemTally),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) SetProject(projectID int64, itemIDs []int64, criterionIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = &project{
		items:    append([]int64(nil), itemIDs...),
		criteria: append([]int64(nil), criterionIDs...),
	}
}

func (s *Store) SetJob(job entities.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
}

// AddTask appends a task and returns it with its assigned id.
func (s *Store) AddTask(task entities.Task) entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTaskID++
	task.TaskID = s.nextTaskID
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}
	s.tasks = append(s.tasks, task)
	return task
}

func (s *Store) FinalizeItem(jobID int64, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized[jobID] == nil {
		s.finalized[jobID] = make(map[int64]struct{})
	}
	s.finalized[jobID][itemID] = struct{}{}
}

func (s *Store) GetJob(_ context.Context, jobID int64) (entities.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return entities.Job{}, domainerrors.ErrJobNotFound
	}
	if _, ok := s.projects[job.ProjectID]; !ok {
		return job, domainerrors.ErrProjectNotFound
	}
	return job, nil
}

func (s *Store) ListJobs(_ context.Context) ([]entities.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		items = append(items, job)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].JobID < items[j].JobID
	})
	return items, nil
}

func (s *Store) ListItemIDs(_ context.Context, projectID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, nil
	}
	return append([]int64(nil), p.items...), nil
}

func (s *Store) ListCriterionIDs(_ context.Context, projectID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, nil
	}
	return append([]int64(nil), p.criteria...), nil
}

func (s *Store) CountVotes(
	_ context.Context,
	jobID int64,
	itemID int64,
	criterionID int64,
	direction entities.VoteDirection,
) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, task := range s.tasks {
		if task.JobID != jobID || task.ItemID != itemID || task.CriterionID != criterionID {
			continue
		}
		if task.Counts(direction) {
			total++
		}
	}
	return total, nil
}

// TallyVotes groups the job's answered tasks per (item, criterion), ordered
// by item then criterion.
func (s *Store) TallyVotes(_ context.Context, jobID int64) ([]entities.ItemTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index := make(map[entities.TallyKey]int)
	tallies := make([]entities.ItemTally, 0)
	for _, task := range s.tasks {
		if task.JobID != jobID || !task.Answered || !task.Vote.Valid() {
			continue
		}
		key := entities.TallyKey{ItemID: task.ItemID, CriterionID: task.CriterionID}
		pos, ok := index[key]
		if !ok {
			pos = len(tallies)
			index[key] = pos
			tallies = append(tallies, entities.ItemTally{ItemID: task.ItemID, CriterionID: task.CriterionID})
		}
		if task.Vote == entities.VoteYes {
			tallies[pos].InVotes++
		} else {
			tallies[pos].OutVotes++
		}
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].ItemID == tallies[j].ItemID {
			return tallies[i].CriterionID < tallies[j].CriterionID
		}
		return tallies[i].ItemID < tallies[j].ItemID
	})
	return tallies, nil
}

func (s *Store) AnsweredItemIDs(_ context.Context, jobID int64, workerID int64, criterionID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	items := make([]int64, 0)
	for _, task := range s.tasks {
		if task.JobID != jobID || task.WorkerID != workerID || task.CriterionID != criterionID || !task.Answered {
			continue
		}
		if _, ok := seen[task.ItemID]; ok {
			continue
		}
		seen[task.ItemID] = struct{}{}
		items = append(items, task.ItemID)
	}
	return items, nil
}

func (s *Store) CountWorkerVotes(_ context.Context, jobID int64, workerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, task := range s.tasks {
		if task.JobID == jobID && task.WorkerID == workerID && task.Answered {
			total++
		}
	}
	return total, nil
}

func (s *Store) FinalizedItemIDs(_ context.Context, jobID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]int64, 0, len(s.finalized[jobID]))
	for itemID := range s.finalized[jobID] {
		items = append(items, itemID)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items, nil
}

func (s *Store) SaveTallies(_ context.Context, jobID int64, tallies []entities.ItemTally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projections[jobID] = append([]entities.ItemTally(nil), tallies...)
	return nil
}

// Projection returns the last tallies saved for the job.
func (s *Store) Projection(jobID int64) []entities.ItemTally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.ItemTally(nil), s.projections[jobID]...)
}

func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.VoteStore = (*Store)(nil)
var _ ports.TallyReader = (*Store)(nil)
var _ ports.TallyProjection = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
