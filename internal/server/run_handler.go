package server

import (
	"errors"
	"net/http"
	"strconv"

	"abcsmc/internal/history"
	"abcsmc/internal/storage"

	"github.com/gin-gonic/gin"
)

type RunHandler struct {
	store storage.Store
}

func NewRunHandler(store storage.Store) *RunHandler {
	return &RunHandler{store: store}
}

func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.store.ListRuns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *RunHandler) GetRun(c *gin.Context) {
	hist := history.New(h.store, c.Param("id"))

	run, err := hist.Run(c.Request.Context())
	if err != nil {
		abortStoreError(c, err)
		return
	}
	n, err := hist.NPopulations(c.Request.Context())
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":           run,
		"n_populations": n,
	})
}

func (h *RunHandler) GetModelProbabilities(c *gin.Context) {
	rows, err := h.store.ModelProbabilities(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":        c.Param("id"),
		"probabilities": rows,
	})
}

func (h *RunHandler) ListPopulations(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("id")

	maxT, err := h.store.MaxT(ctx, runID)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	type populationSummary struct {
		T          int     `json:"t"`
		Epsilon    float64 `json:"epsilon"`
		Particles  int     `json:"particles"`
		TotalDraws int     `json:"total_draws"`
	}
	summaries := make([]populationSummary, 0, maxT+1)
	for t := 0; t <= maxT; t++ {
		population, ok, err := h.store.GetPopulation(ctx, runID, t)
		if err != nil {
			abortStoreError(c, err)
			return
		}
		if !ok {
			continue
		}
		summaries = append(summaries, populationSummary{
			T:          t,
			Epsilon:    population.Epsilon,
			Particles:  len(population.Particles),
			TotalDraws: population.TotalDraws,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      runID,
		"populations": summaries,
	})
}

func (h *RunHandler) GetPopulation(c *gin.Context) {
	t, err := strconv.Atoi(c.Param("t"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "population index must be an integer"})
		return
	}
	population, ok, err := h.store.GetPopulation(c.Request.Context(), c.Param("id"), t)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "population not found"})
		return
	}
	c.JSON(http.StatusOK, population)
}

func (h *RunHandler) GetDistances(c *gin.Context) {
	t, err := strconv.Atoi(c.Param("t"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "population index must be an integer"})
		return
	}
	distances, err := h.store.Distances(c.Request.Context(), c.Param("id"), t)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":    c.Param("id"),
		"t":         t,
		"distances": distances,
	})
}

func abortStoreError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
