package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SessionState is a console session's access level.
type SessionState int

const (
	StateGuest         SessionState = iota // connected, not yet authenticated
	StateAuthenticated                     // full access
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateGuest:
		return "Guest"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var (
	ErrEmpty      = errors.New("empty command")
	ErrUnknown    = errors.New("unknown command")
	ErrNotAllowed = errors.New("command not allowed")
)

// HandlerFunc is the callback signature for console commands. The session
// is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, args []string)

// Info describes a registered command for help output.
type Info struct {
	Name  string
	Usage string
	Help  string
}

type handlerEntry struct {
	info          Info
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps command names to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a command name to a handler, restricted to the given states.
func (reg *Registry) Register(info Info, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	info.Name = strings.ToLower(info.Name)
	reg.handlers[info.Name] = &handlerEntry{
		info:          info,
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch splits line into a command name and arguments, validates the
// session state and calls the handler.
func (reg *Registry) Dispatch(sess any, state SessionState, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ErrEmpty
	}
	name := strings.ToLower(fields[0])
	reg.log.Debug("console command",
		zap.String("command", name),
		zap.Int("args", len(fields)-1),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("console command not allowed in this state",
			zap.String("command", name),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%w: %s in state %s", ErrNotAllowed, name, state)
	}
	return reg.safeCall(entry.fn, sess, fields[1:], name)
}

// Available lists the commands usable in state, sorted by name.
func (reg *Registry) Available(state SessionState) []Info {
	var out []Info
	for _, e := range reg.handlers {
		if e.allowedStates[state] {
			out = append(out, e.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// safeCall executes a handler with panic recovery so a bad command cannot
// take the game loop down.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, args []string, name string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("console handler panic recovered",
				zap.String("command", name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for command %s: %v", name, rec)
		}
	}()
	fn(sess, args)
	return nil
}
