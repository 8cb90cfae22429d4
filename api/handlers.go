package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/katnastou/bert-span-classifier/internal/leaderboard"
	"github.com/katnastou/bert-span-classifier/internal/store"
)

const maxListLimit = 200

type runResponse struct {
	ID              string   `json:"id"`
	CreatedAt       string   `json:"created_at"`
	Task            string   `json:"task"`
	InitCheckpoint  string   `json:"init_checkpoint"`
	DataDir         string   `json:"data_dir"`
	MaxSeqLength    int      `json:"max_seq_length"`
	BatchSize       int      `json:"train_batch_size"`
	LearningRate    float64  `json:"learning_rate"`
	NumTrainEpochs  int      `json:"num_train_epochs"`
	OtherParameters string   `json:"other_parameters,omitempty"`
	Accuracy        *float64 `json:"accuracy,omitempty"`
	ModelDir        string   `json:"model_dir,omitempty"`
}

func runToResponse(run *store.RunRecord) runResponse {
	return runResponse{
		ID:              run.ID,
		CreatedAt:       run.CreatedAt.UTC().Format(time.RFC3339),
		Task:            run.Task,
		InitCheckpoint:  run.InitCheckpoint,
		DataDir:         run.DataDir,
		MaxSeqLength:    run.MaxSeqLength,
		BatchSize:       run.BatchSize,
		LearningRate:    run.LearningRate,
		NumTrainEpochs:  run.NumTrainEpochs,
		OtherParameters: run.OtherParameters,
		Accuracy:        run.Accuracy,
		ModelDir:        run.ModelDir,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("store not configured"))
		return
	}

	filter := store.RunFilter{
		Task:       strings.TrimSpace(c.Query("task")),
		Checkpoint: strings.TrimSpace(c.Query("checkpoint")),
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	filter.Limit = limit

	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			since, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			respondError(c, http.StatusBadRequest, errors.New("invalid since (want RFC3339 or YYYY-MM-DD)"))
			return
		}
		filter.Since = since
	}

	runs, err := s.store.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runToResponse(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("store not configured"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("run id is required"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runToResponse(run))
}

type leaderboardEntry struct {
	Task           string  `json:"task"`
	InitCheckpoint string  `json:"init_checkpoint"`
	BestAccuracy   float64 `json:"best_accuracy"`
	BestRunID      string  `json:"best_run_id"`
	Runs           int     `json:"runs"`
	LastRun        string  `json:"last_run"`
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("store not configured"))
		return
	}

	task := strings.TrimSpace(c.Query("task"))
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.BestRuns(c.Request.Context(), task, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	entries := leaderboard.Build(runs)
	out := make([]leaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, leaderboardEntry{
			Task:           e.Task,
			InitCheckpoint: e.InitCheckpoint,
			BestAccuracy:   e.BestAccuracy,
			BestRunID:      e.BestRunID,
			Runs:           e.Runs,
			LastRun:        e.LastRun.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid limit")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func respondError(c *gin.Context, status int, err error) {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
