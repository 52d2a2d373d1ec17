package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima3d/engine/core"
)

/**
 * @brief A unit of work for the job system. Run executes on a worker
 * goroutine; OnComplete and OnFailure run on the goroutine calling
 * JobSystem.Update, which is where renderer calls are allowed.
 */
type JobTask struct {
	Name       string
	Run        func() (any, error)
	OnComplete func(result any)
	OnFailure  func(err error)
}

/** @brief Anything jobs can be queued on. */
type JobSubmitter interface {
	Submit(jt JobTask) error
}

type jobResult struct {
	task   JobTask
	result any
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mutex     sync.Mutex
	completed []jobResult
	pending   int

	// guards closed and the send side of jobQueue
	closeMutex sync.RWMutex
	closed     bool
}

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
)

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Run()
				js.mutex.Lock()
				js.completed = append(js.completed, jobResult{task: job, result: result, err: err})
				js.mutex.Unlock()
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run and their
 * callbacks are delivered before this returns.
 */
func (js *JobSystem) Shutdown() error {
	js.closeMutex.Lock()
	if js.closed {
		js.closeMutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.closeMutex.Unlock()

	js.wg.Wait()
	js.Update()
	return nil
}

/**
 * @brief Delivers the callbacks of every finished job. Should happen once
 * an update cycle.
 */
func (js *JobSystem) Update() {
	js.mutex.Lock()
	completed := js.completed
	js.completed = nil
	js.pending -= len(completed)
	js.mutex.Unlock()

	for _, r := range completed {
		if r.err != nil {
			core.LogError("job '%s' failed: %s", r.task.Name, r.err.Error())
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
}

// Pending counts submitted jobs whose callbacks have not been delivered yet.
func (js *JobSystem) Pending() int {
	js.mutex.Lock()
	defer js.mutex.Unlock()
	return js.pending
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks
 * while the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.Run == nil {
		return errors.New("job has nothing to run")
	}
	js.closeMutex.RLock()
	defer js.closeMutex.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.mutex.Lock()
	js.pending++
	js.mutex.Unlock()

	js.jobQueue <- jt
	return nil
}
