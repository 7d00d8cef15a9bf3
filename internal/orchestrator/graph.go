package orchestrator

import (
	"sort"

	"github.com/google/uuid"

	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

// JobGraph holds every Job for a study plus the ready/completed/failed
// partitions (spec §4.G.2). Its fields are plain maps and slices with no
// locking of their own; the owning StudyRuntime's mutex guards them.
type JobGraph struct {
	StudyID    string
	Jobs       map[string]*manifest.Job // keyed by job ID
	ByCellKey  map[manifest.CellKey]string
	ReadyQueue []string // job IDs, in dispatch order
	Completed  map[string]bool
	Failed     map[string]bool
}

// BuildJobGraph expands a validated manifest into the Q x S x L cell set
// (spec §4.G.2). Surface/location order in m determines lexicographic
// ordering for surface-first/location-first execution orders.
func BuildJobGraph(studyID string, m *manifest.Manifest, rnd func(n int) int) *JobGraph {
	g := &JobGraph{
		StudyID:   studyID,
		Jobs:      make(map[string]*manifest.Job),
		ByCellKey: make(map[manifest.CellKey]string),
		Completed: make(map[string]bool),
		Failed:    make(map[string]bool),
	}

	type cell struct {
		queryIndex int
		surfaceID  string
		locationID string
	}
	var cells []cell

	switch m.Execution.ExecutionOrder {
	case manifest.SurfaceFirst:
		for _, s := range m.Surfaces {
			for _, l := range m.Locations {
				for qi := range m.Queries {
					cells = append(cells, cell{qi, s.ID, l.ID})
				}
			}
		}
	case manifest.LocationFirst:
		for _, l := range m.Locations {
			for _, s := range m.Surfaces {
				for qi := range m.Queries {
					cells = append(cells, cell{qi, s.ID, l.ID})
				}
			}
		}
	default: // round-robin: interleave across surfaces and locations
		for qi := range m.Queries {
			for _, s := range m.Surfaces {
				for _, l := range m.Locations {
					cells = append(cells, cell{qi, s.ID, l.ID})
				}
			}
		}
	}

	if m.Execution.ShuffleQueries && rnd != nil {
		for i := len(cells) - 1; i > 0; i-- {
			j := rnd(i + 1)
			cells[i], cells[j] = cells[j], cells[i]
		}
	}

	for _, c := range cells {
		job := &manifest.Job{
			ID:         uuid.NewString(),
			StudyID:    studyID,
			QueryIndex: c.queryIndex,
			SurfaceID:  c.surfaceID,
			LocationID: c.locationID,
			Status:     manifest.JobPending,
		}
		g.Jobs[job.ID] = job
		g.ByCellKey[job.CellKey()] = job.ID
		g.ReadyQueue = append(g.ReadyQueue, job.ID)
	}

	return g
}

// requiredSurfaceSet returns a lookup set of required surface IDs.
func requiredSurfaceSet(m *manifest.Manifest) map[string]bool {
	set := make(map[string]bool, len(m.CompletionCriteria.RequiredSurfaceIDs))
	for _, id := range m.CompletionCriteria.RequiredSurfaceIDs {
		set[id] = true
	}
	return set
}

// GetNextJobs returns up to limit pending, due jobs, required-surface jobs
// first, preserving original queue order within each priority band (spec
// §4.G.3 rules 1-2). The per-job lock (rule 3) is enforced by StartJob,
// called by the caller before treating a job as claimed.
func GetNextJobs(g *JobGraph, m *manifest.Manifest, now clock.Clock, limit int) []*manifest.Job {
	required := requiredSurfaceSet(m)
	t := now()

	type candidate struct {
		job      *manifest.Job
		priority int // 0 = required (higher priority), 1 = optional
		order    int
	}
	var candidates []candidate
	for order, id := range g.ReadyQueue {
		job, ok := g.Jobs[id]
		if !ok || job.Status != manifest.JobPending {
			continue
		}
		if job.NextAttemptAt != nil && job.NextAttemptAt.After(t) {
			continue
		}
		prio := 1
		if required[job.SurfaceID] {
			prio = 0
		}
		candidates = append(candidates, candidate{job, prio, order})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})

	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]*manifest.Job, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, candidates[i].job)
	}
	return out
}
