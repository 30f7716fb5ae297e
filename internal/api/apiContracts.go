package api

import (
	"time"

	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

// OperationResponse is the envelope every lifecycle and admin endpoint
// returns. Recognized domain failures go out as success=false with the
// message as-is, not as opaque 500s.
type OperationResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type QueueStatusResponse struct {
	Counts        jobModel.QueueCounts `json:"counts"`
	ActiveWorkers int64                `json:"activeWorkers"`
}

type JobSummary struct {
	Id        string              `json:"id"`
	Name      string              `json:"name"`
	Data      jobModel.JobPayload `json:"data"`
	CreatedAt time.Time           `json:"createdAt"`
}

type QueueDetailResponse struct {
	WaitingJobs []JobSummary         `json:"waitingJobs"`
	ActiveJobs  []JobSummary         `json:"activeJobs"`
	Counts      jobModel.QueueCounts `json:"counts"`
}

type RetryFailedResponse struct {
	RetriedCount int `json:"retried_count"`
}

type ResumeJobsRequest struct {
	DatasetId string `json:"datasetId" validate:"required"`
	UserId    string `json:"userId,omitempty"`
}

type UploadDocumentResponse struct {
	DocumentId string `json:"document_id"`
	JobId      string `json:"job_id"`
}
