package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/dispatcher"
	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/embedding"
	"github.com/akolanti/docpipeline/internal/embedding/googleEmbedding"
	"github.com/akolanti/docpipeline/internal/embedding/openaiEmbedding"
	"github.com/akolanti/docpipeline/internal/handlers"
	"github.com/akolanti/docpipeline/internal/orchestrator"
	"github.com/akolanti/docpipeline/internal/processor"
	"github.com/akolanti/docpipeline/internal/registry"
	"github.com/akolanti/docpipeline/internal/resume"
	"github.com/akolanti/docpipeline/internal/server"
	"github.com/akolanti/docpipeline/internal/stages"
	"github.com/akolanti/docpipeline/internal/throttle"
	"github.com/akolanti/docpipeline/internal/vectorDB"
	"github.com/akolanti/docpipeline/internal/vectorDB/qdrantDB"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//durable stores, with the in-memory fallback when redis is offline
	var queue jobModel.Queue
	var documents docModel.DocumentStore

	redisQueue := store.GetRedisQueue(serviceContext)
	redisDocuments := store.GetRedisDocumentStore(serviceContext)
	if redisQueue == nil || redisDocuments == nil {
		logger.Error("Redis stores are offline")
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return
		}
		queue = store.InitInMemoryQueue()
		documents = store.InitInMemoryDocumentStore()
	} else {
		queue = redisQueue
		documents = redisDocuments
	}

	dispatch := dispatcher.New(queue)

	//external services
	var embedder embedding.Embedder
	switch config.EmbeddingProvider() {
	case "openai":
		embedder = openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, config.OpenAIAPIKey())
	default:
		embedder = googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GoogleAPIKey())
	}

	var vectors vectorDB.DataProcessor
	if qdrantClient := qdrantDB.GetQdrantClient(serviceContext); qdrantClient != nil {
		vectors = qdrantClient
	}

	if embedder == nil || vectors == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "VectorDB", vectors != nil, "EmbeddingService", embedder != nil)
		return
	}

	//job registry: a handler per pipeline stage, wired once at startup
	reg := registry.New()
	stageSet := stages.New(documents, dispatch, embedder, vectors, config.VectorCollectionName)
	if err := stageSet.RegisterAll(reg); err != nil {
		logger.Error("Handler registration failed, aborting startup", "error", err)
		return
	}

	orchestration := orchestrator.New(queue, documents, dispatch)
	resumeService := resume.NewService(documents, dispatch)

	//admission throttle is owned here and handed to the processor explicitly
	gate := throttle.New(config.ThrottleBudget())
	queueProcessor := processor.New(queue, reg, gate)
	queueProcessor.Start(stopWorkerChannel, &workerWaitGroup)

	handlers.InitHandlers(handlers.HandlerServices{
		Queue:        queue,
		Documents:    documents,
		Orchestrator: orchestration,
		Resume:       resumeService,
		Dispatcher:   dispatch,
		Processor:    queueProcessor,
	})

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
