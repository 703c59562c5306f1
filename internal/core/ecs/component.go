package ecs

// Removable is implemented by all component stores so World can drop an
// entity's data from every attached store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a sparse-set component store. Iteration follows the dense slice,
// so it is stable for a given sequence of Set/Remove calls.
type Store[T any] struct {
	index map[EntityID]int
	ids   []EntityID
	data  []*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		index: make(map[EntityID]int, 32),
		ids:   make([]EntityID, 0, 32),
		data:  make([]*T, 0, 32),
	}
}

func (s *Store[T]) Set(id EntityID, c *T) {
	if i, ok := s.index[id]; ok {
		s.data[i] = c
		return
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.data = append(s.data, c)
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.data[i], true
}

// Remove swaps the last element into the hole.
func (s *Store[T]) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.ids) - 1
	if i != last {
		s.ids[i] = s.ids[last]
		s.data[i] = s.data[last]
		s.index[s.ids[i]] = i
	}
	s.ids[last] = 0
	s.data[last] = nil
	s.ids = s.ids[:last]
	s.data = s.data[:last]
	delete(s.index, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.ids)
}

func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i, id := range s.ids {
		fn(id, s.data[i])
	}
}
