package server

import (
	"abcsmc/internal/storage"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the read-only inspection API over a history store.
func NewRouter(store storage.Store) *gin.Engine {
	r := gin.Default()

	runHandler := NewRunHandler(store)

	api := r.Group("/api")
	{
		runs := api.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
			runs.GET("/:id/probabilities", runHandler.GetModelProbabilities)
			runs.GET("/:id/populations", runHandler.ListPopulations)
			runs.GET("/:id/populations/:t", runHandler.GetPopulation)
			runs.GET("/:id/populations/:t/distances", runHandler.GetDistances)
		}
	}

	return r
}
