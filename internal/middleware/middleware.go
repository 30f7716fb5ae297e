package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/docpipeline/internal/handlers"
	"github.com/akolanti/docpipeline/internal/metrics"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var (
	QueueStatusHandler   = Wrap(handlers.QueueStatusHandler)
	QueueJobsHandler     = Wrap(handlers.QueueJobsHandler)
	QueueCleanupHandler  = Wrap(handlers.QueueCleanupHandler)
	QueueLogsHandler     = Wrap(handlers.QueueLogsHandler)
	QueueOverviewHandler = Wrap(handlers.QueueOverviewHandler)
	RetryFailedHandler   = Wrap(handlers.RetryFailedHandler)
	ResumeJobsHandler    = Wrap(handlers.ResumeJobsHandler)

	UploadDocumentHandler    = Wrap(handlers.UploadDocumentHandler)
	PauseDocumentHandler     = Wrap(handlers.PauseDocumentHandler)
	ResumeDocumentHandler    = Wrap(handlers.ResumeDocumentHandler)
	RetryDocumentHandler     = Wrap(handlers.RetryDocumentHandler)
	CancelDocumentHandler    = Wrap(handlers.CancelDocumentHandler)
	DocumentJobStatusHandler = Wrap(handlers.DocumentJobStatusHandler)
	DeleteDocumentHandler    = Wrap(handlers.DeleteDocumentHandler)
)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received")
	re = injectTrace(re)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re //stop if auth fails
	}
	re = rateLimiter(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re //stop here if rate limit fails
	}

	return re
}
