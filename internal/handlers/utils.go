package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/akolanti/docpipeline/internal/adapter"
	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/orchestrator"
	"github.com/akolanti/docpipeline/internal/processor"
	"github.com/akolanti/docpipeline/internal/resume"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

var (
	handlerInstance *HandlerServices //private singleton
	once            sync.Once
	logQH           *logger_i.Logger
	logDH           *logger_i.Logger
)

type HandlerServices struct {
	Queue        jobModel.Queue
	Documents    docModel.DocumentStore
	Orchestrator *orchestrator.Orchestrator
	Resume       *resume.Service
	Dispatcher   *dispatcher.Dispatcher
	Processor    *processor.Processor
}

func InitHandlers(services HandlerServices) {
	once.Do(func() {
		handlerInstance = &services

		logQH = logger_i.NewLogger("QueueHandler")
		logDH = logger_i.NewLogger("DocumentHandler")
		logQH.Info("Starting http handlers")
	})
}

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logQH.Error("Error encoding response: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJsonResponse(w, statusCode, adapter.Success(data))
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(error))
}

func traceId(ctx context.Context) string {
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return trace
	}
	return ""
}

func validateContext(ctx context.Context, log *logger_i.Logger) bool {
	log.With("traceId:", traceId(ctx))
	if ctx.Err() != nil {
		log.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		log.Warn("context cancelled")
		return false
	default:
		return true

	}
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}
