package config

import (
	"os"
	"strconv"
	"time"
)

const (
	TRACE_ID_KEY = "traceId"

	//if redis init fails, the pipeline falls back to the in-memory stores
	FALLBACK_REDIS_TO_INTERNALSTORE = true

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	NoAuthBypass = true
	AuthToken    = "local-dev-token"

	//queue defaults - every one of these can be overridden via environment
	DefaultQueueConcurrency = 3
	DefaultMaxAttempts      = 3
	DefaultBackoffBase      = 2000 * time.Millisecond
	DefaultKeepCompleted    = 200
	DefaultKeepFailed       = 500
	DefaultThrottleBudget   = 3

	//delay before a throttled job is handed back to the queue
	ThrottleRequeueDelay = 100 * time.Millisecond

	//how long an idle worker sleeps before polling the queue again
	QueuePollInterval = 250 * time.Millisecond

	//how long a single handler invocation may run
	JobExecutionTimeout = 5 * time.Minute

	//capped length of the queue event log used by GET queue/logs
	QueueEventLogSize = 1000

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//chunking
	ChunkSizeLimit = 1000
	ChunkOverlap   = 150

	//embedding
	EmbeddingBatchSize                  = 100
	EmbeddingOutputDimensionality int32 = 1536
	GoogleEmbeddingModel                = "gemini-embedding-001"
	OpenAIEmbeddingModel                = "text-embedding-3-small"

	//vectorDB
	VectorCollectionName   = "docpipeline-segments"
	QdrantHost             = ""
	QdrantGrpcPort         = 6334
	QdrantUseTLS           = false
	QdrantPoolSize         = 1
	QdrantMaxRecvMsgSizeMB = 32

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort
	//redis has 16 DB we can use
	RedisQueueDB    = 0
	RedisDocumentDB = 1

	RedisJobRecordTTL = 24 * time.Hour
)

func QueueConcurrency() int {
	return envInt("QUEUE_CONCURRENCY", DefaultQueueConcurrency)
}

func MaxAttempts() int {
	return envInt("QUEUE_MAX_ATTEMPTS", DefaultMaxAttempts)
}

func BackoffBase() time.Duration {
	ms := envInt("QUEUE_BACKOFF_BASE_MS", int(DefaultBackoffBase/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

func KeepCompleted() int {
	return envInt("QUEUE_KEEP_COMPLETED", DefaultKeepCompleted)
}

func KeepFailed() int {
	return envInt("QUEUE_KEEP_FAILED", DefaultKeepFailed)
}

func ThrottleBudget() int {
	return envInt("THROTTLE_BUDGET", DefaultThrottleBudget)
}

func EmbeddingProvider() string {
	if p := os.Getenv("EMBEDDING_PROVIDER"); p != "" {
		return p
	}
	return "google"
}

func GoogleAPIKey() string {
	return os.Getenv("GOOGLE_API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
