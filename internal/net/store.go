package net

// SessionStore tracks live console sessions. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
	order    []uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	if _, ok := st.sessions[s.ID()]; ok {
		return
	}
	st.sessions[s.ID()] = s
	st.order = append(st.order, s.ID())
}

func (st *SessionStore) Remove(id uint64) {
	if _, ok := st.sessions[id]; !ok {
		return
	}
	delete(st.sessions, id)
	for i, v := range st.order {
		if v == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Len() int { return len(st.sessions) }

// Each visits sessions in connection order. fn may remove the session it is
// given.
func (st *SessionStore) Each(fn func(*Session)) {
	ids := append([]uint64(nil), st.order...)
	for _, id := range ids {
		if s, ok := st.sessions[id]; ok {
			fn(s)
		}
	}
}
