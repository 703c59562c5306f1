package ecs

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generations start at 1, so the zero ID never refers to
// a live entity.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool allocates generational IDs. Freed indices are reused in the
// order they were freed, which keeps replays with the same seed identical.
type EntityPool struct {
	generations []uint32
	freeList    []uint32
	alive       int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 64),
		freeList:    make([]uint32, 0, 16),
	}
}

func (p *EntityPool) Create() EntityID {
	p.alive++
	if len(p.freeList) > 0 {
		idx := p.freeList[0]
		p.freeList = p.freeList[1:]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return NewEntityID(idx, 1)
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy bumps the generation so outstanding copies of id go stale.
func (p *EntityPool) Destroy(id EntityID) {
	if !p.Alive(id) {
		return
	}
	idx := id.Index()
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	p.alive--
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.alive }
