package adswap

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"adsift/atypes"
)

type TaskQueue struct {
	tasks chan func()
	done  chan struct{}
}

func NewTaskQueue(size int) *TaskQueue {
	tq := &TaskQueue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go tq.taskGoroutine()

	return tq
}

func (tq *TaskQueue) Enqueue(name string, task func()) bool {
	select {
	case tq.tasks <- task:
		return true
	default:
		atypes.Stat(true, "task_queue", "dropped", name)
		logrus.Errorf("task queue full, dropping %s", name)
		return false
	}
}

func (tq *TaskQueue) taskGoroutine() {
	defer close(tq.done)
	for task := range tq.tasks {
		tq.runTask(task)
	}
}

func (tq *TaskQueue) runTask(task func()) {
	defer func() {
		if atypes.Recover == false {
			return
		}
		if r := recover(); r != nil {
			logrus.Errorf("%s: %s", r, debug.Stack())
		}
	}()
	task()
}

// Close stops intake and waits for queued tasks to drain.
func (tq *TaskQueue) Close() {
	close(tq.tasks)
	<-tq.done
}
