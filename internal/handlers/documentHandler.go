package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/docpipeline/internal/adapter/utils"
	"github.com/akolanti/docpipeline/internal/api"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

// UploadDocumentHandler receives a file via multipart/form-data, stores it in
// the temporary directory, creates the document record and queues the parse
// job that starts the pipeline.
func UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		logDH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logDH.Error("Couldn't get target directory :", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "document_name is required")
		return
	}
	datasetId := r.FormValue("dataset_id")
	if datasetId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "dataset_id is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "Write error")
		return
	}

	doc := docModel.Document{
		Id:             utils.GetNewUUID(),
		DatasetId:      datasetId,
		Name:           docName,
		SourcePath:     tempFilePath,
		IndexingStatus: docModel.IndexingWaiting,
		CreatedAt:      time.Now(),
	}
	if err := handlerInstance.Documents.SaveDocument(r.Context(), doc); err != nil {
		logDH.Error("Could not save document record", "documentId", doc.Id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}

	payload := jobModel.JobPayload{
		DocumentId: doc.Id,
		DatasetId:  datasetId,
		UserId:     r.FormValue("user_id"),
		SourcePath: tempFilePath,
	}
	jobId, err := handlerInstance.Dispatcher.Enqueue(r.Context(), jobModel.JobTypeParse, payload, jobModel.JobOptions{})
	if err != nil {
		logDH.Error("Could not enqueue parse job", "documentId", doc.Id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Could not queue document")
		return
	}

	doc.AddActiveJob(jobId)
	if err := handlerInstance.Documents.SaveDocument(r.Context(), doc); err != nil {
		logDH.Error("Could not record active job id", "documentId", doc.Id, "jobId", jobId, "error", err)
	}

	logDH.Info("Queued uploaded document", "documentId", doc.Id, "jobId", jobId, "name", docName)
	writeSuccess(w, http.StatusAccepted, api.UploadDocumentResponse{DocumentId: doc.Id, JobId: jobId})
}

func PauseDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	if err := handlerInstance.Orchestrator.Pause(r.Context(), id, r.FormValue("user_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.OperationResponse{Success: true, Message: "document paused"})
}

func ResumeDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	if err := handlerInstance.Orchestrator.Resume(r.Context(), id, r.FormValue("user_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.OperationResponse{Success: true, Message: "document resumed"})
}

func RetryDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	if err := handlerInstance.Orchestrator.Retry(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.OperationResponse{Success: true, Message: "document retry queued"})
}

func CancelDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	result, err := handlerInstance.Orchestrator.CancelAllProcessingJobs(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func DocumentJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	status, err := handlerInstance.Orchestrator.GetDocumentJobStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, status)
}

func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context(), logDH) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	result, err := handlerInstance.Orchestrator.DeleteDocument(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// Recognized domain failures surface as-is so the UI can show them; only a
// missing document maps to 404.
func writeDomainError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		WriteErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	WriteErrorResponse(w, http.StatusBadRequest, err.Error())
}
