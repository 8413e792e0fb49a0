package panel

import (
	"sort"

	"import_panel/internal/models"
)

// JobSet is the selector's view of running jobs for one import config.
type JobSet struct {
	jobs map[string]models.ImportJob
}

func newJobSet() *JobSet {
	return &JobSet{jobs: make(map[string]models.ImportJob)}
}

// Replace swaps the whole set (running_jobs).
func (s *JobSet) Replace(jobs []models.ImportJob) {
	s.jobs = make(map[string]models.ImportJob, len(jobs))
	for _, j := range jobs {
		s.Add(j)
	}
}

// Add inserts or updates one job and marks it running.
func (s *JobSet) Add(j models.ImportJob) {
	if j.ID != "" {
		j.IsRunning = true
		s.jobs[j.ID] = j
	}
}

// Remove deletes a job; unknown ids are ignored.
func (s *JobSet) Remove(id string) {
	delete(s.jobs, id)
}

// Get looks a job up by id.
func (s *JobSet) Get(id string) (models.ImportJob, bool) {
	j, ok := s.jobs[id]
	return j, ok
}

// Options lists jobs newest first (ties by id) for the selector.
func (s *JobSet) Options() []models.ImportJob {
	out := make([]models.ImportJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].RunAt.Equal(out[k].RunAt) {
			return out[i].RunAt.After(out[k].RunAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}
