package bot

import "context"

// A roomWorker drains one room's event queue on its own goroutine, so
// events for a room are processed strictly in arrival order. A semaphore
// shared by all workers bounds how many rooms run Process at once.
type roomWorker struct {
	jobs chan Event
}

func newRoomWorker(ctx context.Context, sem chan struct{}, handle func(context.Context, Event)) *roomWorker {
	w := &roomWorker{jobs: make(chan Event, roomQueueSize)}
	go w.run(ctx, sem, handle)
	return w
}

func (w *roomWorker) run(ctx context.Context, sem chan struct{}, handle func(context.Context, Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.jobs:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			handle(ctx, ev)
			<-sem
		}
	}
}

// enqueue hands an event to the worker, blocking while the room's queue
// is full. It fails once either the caller's context or the dispatcher's
// run context is done.
func (w *roomWorker) enqueue(ctx, runCtx context.Context, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return runCtx.Err()
	case w.jobs <- ev:
		return nil
	}
}
