package ecs

// World owns the entity pool, the component stores attached to it and a
// deferred destruction queue flushed by CleanupSystem each tick.
type World struct {
	pool         *EntityPool
	stores       []Removable
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		destroyQueue: make([]EntityID, 0, 16),
	}
}

// Attach registers component stores so destroyed entities are removed from
// them. Stores are cleared in attach order.
func (w *World) Attach(stores ...Removable) {
	w.stores = append(w.stores, stores...)
}

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// MarkForDestruction queues an entity for end-of-tick cleanup. Queuing the
// same entity twice is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending returns how many entities are queued for destruction.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys every queued entity that is still alive.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
