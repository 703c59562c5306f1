package spell

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// ReturnReason explains why a projectile went back to the free list.
type ReturnReason uint8

const (
	ReturnManual  ReturnReason = iota // Release or ForceReturn
	ReturnExpired                     // lifetime elapsed
	ReturnHit                         // struck an enemy combatant
	ReturnEvicted                     // retired to make room for a newer cast
	ReturnReset                       // ReleaseAll / Shutdown
)

func (r ReturnReason) String() string {
	switch r {
	case ReturnManual:
		return "manual"
	case ReturnExpired:
		return "expired"
	case ReturnHit:
		return "hit"
	case ReturnEvicted:
		return "evicted"
	case ReturnReset:
		return "reset"
	default:
		return "unknown"
	}
}

// NoticeKind tags a pool lifecycle notice.
type NoticeKind uint8

const (
	NoticeAcquired NoticeKind = iota
	NoticeReturned
	NoticeExhausted
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeAcquired:
		return "acquired"
	case NoticeReturned:
		return "returned"
	case NoticeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Notice is a value snapshot of a pool transition. It never aliases the
// projectile, so listeners may keep it past the current tick.
type Notice struct {
	Kind       NoticeKind
	Reason     ReturnReason // set for NoticeReturned
	ID         int          // -1 for NoticeExhausted
	Owner      Faction
	Position   mgl64.Vec3
	Generation uint32
	At         time.Duration // pool clock time
	Age        time.Duration // time since activation, for NoticeReturned
}

// Listener receives notices synchronously from inside pool calls. It must
// not call back into the pool.
type Listener func(Notice)

// Stats is a read-only snapshot for diagnostics. Active and Free are the
// counters recomputed on the last Tick; the rest are cumulative.
type Stats struct {
	Active int `json:"active"`
	Free   int `json:"free"`
	Total  int `json:"total"`

	Created   uint64 `json:"created"`
	Acquired  uint64 `json:"acquired"`
	Released  uint64 `json:"released"`
	Expired   uint64 `json:"expired"`
	Hits      uint64 `json:"hits"`
	Evicted   uint64 `json:"evicted"`
	Exhausted uint64 `json:"exhausted"`
	Failed    uint64 `json:"failed"`
}
