package worker

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/inkwire/dispatch/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	sigTerm        chan os.Signal
	do             WorkerHandler
	waiter         *sync.WaitGroup
}

// NewWorkerManager is a goroutine-based job pool. Define the number of
// internal workers and publish jobs with Enqueue(); jobs are distributed
// among the pool. Workers never exit on their own; call Exit() to stop
// them. The job channel is not closed on Exit because it may be shared
// with other producers.
func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	// Buffered so no signal is lost when Exit is called before all
	// workers are draining the channel.
	var sigChan = make(chan os.Signal, numberOfWorkers)
	signal.Notify(sigChan, syscall.SIGTERM)

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		sigTerm:        sigChan,
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	if w.jobChannel == nil {
		return 0
	}
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue publishes a job onto the channel.
func (w *WorkerManager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// Start runs the workers and blocks until they are terminated.
func (w *WorkerManager) Start() error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.sigTerm:
					w.waiter.Done()
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return errors.New("workers terminated")
}

// Exit stops all workers.
func (w *WorkerManager) Exit() {
	logger.Info("Exit() is called and worker manager is going to be shutdown")
	for i := 0; i < w.numberOfWorker; i++ {
		w.sigTerm <- syscall.SIGSTOP
	}
}
