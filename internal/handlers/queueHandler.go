package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/akolanti/docpipeline/internal/adapter"
	"github.com/akolanti/docpipeline/internal/api"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

const jobListLimit = 100

// QueueStatusHandler returns the live per-state counters and the number of
// running workers.
func QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	counts, err := handlerInstance.Queue.Counts(r.Context())
	if err != nil {
		logQH.Error("Could not read queue counts", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue unavailable")
		return
	}

	writeJsonResponse(w, http.StatusOK, api.QueueStatusResponse{
		Counts:        counts,
		ActiveWorkers: handlerInstance.Processor.WorkerCount(),
	})
}

// QueueJobsHandler lists the jobs currently waiting or active, newest first.
func QueueJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	waiting, err := handlerInstance.Queue.ListByStatus(r.Context(), jobModel.JobStatusWaiting, jobListLimit)
	if err != nil {
		logQH.Error("Could not list waiting jobs", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	active, err := handlerInstance.Queue.ListByStatus(r.Context(), jobModel.JobStatusActive, jobListLimit)
	if err != nil {
		logQH.Error("Could not list active jobs", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	counts, err := handlerInstance.Queue.Counts(r.Context())
	if err != nil {
		logQH.Error("Could not read queue counts", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue unavailable")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToQueueDetail(waiting, active, counts))
}

// QueueCleanupHandler trims the completed and failed terminal lists to their
// retention caps.
func QueueCleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	if err := handlerInstance.Queue.Cleanup(r.Context()); err != nil {
		logQH.Error("Queue cleanup failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJsonResponse(w, http.StatusOK, api.OperationResponse{Success: true, Message: "queue trimmed"})
}

// QueueLogsHandler returns the recent queue lifecycle events, newest first.
func QueueLogsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	limit := int64(jobListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := handlerInstance.Queue.RecentEvents(r.Context(), limit)
	if err != nil {
		logQH.Error("Could not read queue events", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, events)
}

// QueueOverviewHandler is the dashboard endpoint: counts plus waiting and
// active job detail in one payload.
func QueueOverviewHandler(w http.ResponseWriter, r *http.Request) {
	QueueJobsHandler(w, r)
}

// RetryFailedHandler moves every permanently failed job back to waiting with
// a fresh retry budget.
func RetryFailedHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	retried, err := handlerInstance.Queue.RetryFailed(r.Context())
	if err != nil {
		logQH.Error("Retry of failed jobs failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "retry failed")
		return
	}
	logQH.Info("Re-queued failed jobs", "count", retried)
	writeSuccess(w, http.StatusOK, api.RetryFailedResponse{RetriedCount: retried})
}

// ResumeJobsHandler drains whatever is still queued for the dataset, then
// re-enqueues one chunking job per document that has resumable segments.
func ResumeJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logQH) {
		return
	}

	var requestData api.ResumeJobsRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logQH.Error("Couldn't close the resume request reader :", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.DatasetId == "" {
		logQH.Warn("Bad resume request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "datasetId is required")
		return
	}

	//clear stale queue entries first so resumed jobs never race leftovers
	if err := handlerInstance.Queue.Drain(r.Context()); err != nil {
		logQH.Error("Could not drain queue before resume", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "queue drain failed")
		return
	}

	summary, err := handlerInstance.Resume.ResumeDataset(r.Context(), requestData.DatasetId, requestData.UserId)
	if err != nil {
		logQH.Error("Resume scan failed", "datasetId", requestData.DatasetId, "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, http.StatusAccepted, summary)
}
