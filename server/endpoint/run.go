package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/errors"
	"github.com/kbukum/taskgraph/sse"
)

// RunView is the read-only view of a run served over HTTP.
type RunView interface {
	RunID() string
	Summary() coordinator.RunSummary
	State() coordinator.StateSnapshot
	Events() []coordinator.Event
}

type dataResponse struct {
	Data any `json:"data"`
}

func noRun(c *gin.Context) {
	err := errors.NotFound("run", "")
	c.JSON(err.HTTPStatus, err.ToResponse())
}

// RunSummary returns a handler serving the current run summary.
func RunSummary(run RunView) gin.HandlerFunc {
	return func(c *gin.Context) {
		if run == nil {
			noRun(c)
			return
		}
		c.JSON(http.StatusOK, dataResponse{Data: run.Summary()})
	}
}

// RunState returns a handler serving task entries grouped by state.
func RunState(run RunView) gin.HandlerFunc {
	return func(c *gin.Context) {
		if run == nil {
			noRun(c)
			return
		}
		c.JSON(http.StatusOK, dataResponse{Data: run.State()})
	}
}

// RunEvents returns a handler streaming the run's events over SSE. Events
// logged before the client connected are replayed first.
func RunEvents(run RunView, hub *sse.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if run == nil || hub == nil {
			noRun(c)
			return
		}
		runID := run.RunID()

		past := run.Events()
		replay := make([]sse.Frame, 0, len(past))
		for _, e := range past {
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			replay = append(replay, sse.Frame{Event: string(e.Type), Data: data})
		}

		clientID := sse.RunClientID(runID, uuid.NewString())
		sse.ServeSSE(hub, c.Writer, c.Request, clientID, replay, sse.WithRunID(runID))
	}
}
