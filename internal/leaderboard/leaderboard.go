// Package leaderboard ranks checkpoints by their best dev-set accuracy
// per task.
package leaderboard

import (
	"sort"
	"time"

	"github.com/katnastou/bert-span-classifier/internal/store"
)

// Entry is one checkpoint's standing on a task.
type Entry struct {
	Task           string
	InitCheckpoint string
	BestAccuracy   float64
	BestRunID      string
	Runs           int
	LastRun        time.Time
}

// Build aggregates run records into leaderboard entries, best accuracy
// first. Runs without an accuracy count toward the run total but never
// rank.
func Build(runs []*store.RunRecord) []Entry {
	type key struct {
		task       string
		checkpoint string
	}

	byKey := make(map[key]*Entry)
	var order []key
	for _, run := range runs {
		if run == nil {
			continue
		}
		k := key{task: run.Task, checkpoint: run.InitCheckpoint}
		e, ok := byKey[k]
		if !ok {
			e = &Entry{Task: run.Task, InitCheckpoint: run.InitCheckpoint, BestAccuracy: -1}
			byKey[k] = e
			order = append(order, k)
		}
		e.Runs++
		if run.CreatedAt.After(e.LastRun) {
			e.LastRun = run.CreatedAt
		}
		if run.Accuracy != nil && *run.Accuracy > e.BestAccuracy {
			e.BestAccuracy = *run.Accuracy
			e.BestRunID = run.ID
		}
	}

	out := make([]Entry, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BestAccuracy != out[j].BestAccuracy {
			return out[i].BestAccuracy > out[j].BestAccuracy
		}
		return out[i].LastRun.After(out[j].LastRun)
	})
	return out
}
