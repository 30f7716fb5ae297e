package adapter

import (
	"github.com/akolanti/docpipeline/internal/api"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
)

func ToJobSummary(job jobModel.Job) api.JobSummary {
	return api.JobSummary{
		Id:        job.Id,
		Name:      job.Type,
		Data:      job.Payload,
		CreatedAt: job.CreatedAt,
	}
}

func ToJobSummaries(jobs []jobModel.Job) []api.JobSummary {
	summaries := make([]api.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, ToJobSummary(job))
	}
	return summaries
}

func ToQueueDetail(waiting []jobModel.Job, active []jobModel.Job, counts jobModel.QueueCounts) api.QueueDetailResponse {
	return api.QueueDetailResponse{
		WaitingJobs: ToJobSummaries(waiting),
		ActiveJobs:  ToJobSummaries(active),
		Counts:      counts,
	}
}

func Success(data interface{}) api.OperationResponse {
	return api.OperationResponse{Success: true, Data: data}
}

func BadRequest(message string) api.OperationResponse {
	return api.OperationResponse{Success: false, Message: message}
}
