package jobs

import (
	"log/slog"

	"github.com/hibiken/asynq"
)

const workerConcurrency = 10

// Worker consumes queued tasks with per-queue priorities.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	return &worker{
		server: asynq.NewServer(redisOpt, asynq.Config{
			Queues:      queues,
			Concurrency: workerConcurrency,
		}),
		mux: asynq.NewServeMux(),
		log: log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks until Shutdown is called.
func (w *worker) Run() error {
	w.log.Info("jobs worker started")
	return w.server.Run(w.mux)
}

func (w *worker) Shutdown() {
	w.log.Info("jobs worker stopping")
	w.server.Shutdown()
}
