package handler

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spellduel/server/internal/net/command"
)

// HashPassword produces the value expected in console.password_hash.
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HandleAuth checks the password against the configured bcrypt hash.
// Too many failures close the session.
func HandleAuth(c Conn, args []string, deps *Deps) {
	if c.State() == command.StateAuthenticated {
		c.Send("already authenticated")
		return
	}
	if len(args) == 0 {
		c.Send("usage: auth <password>")
		return
	}
	password := strings.Join(args, " ")
	if deps.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(deps.PasswordHash), []byte(password)) == nil {
		c.SetState(command.StateAuthenticated)
		delete(deps.failures, c.ID())
		deps.Log.Info("console authenticated", zap.Uint64("session", c.ID()))
		c.Send("ok")
		return
	}

	deps.failures[c.ID()]++
	n := deps.failures[c.ID()]
	deps.Log.Warn("console authentication failed", zap.Uint64("session", c.ID()), zap.Int("failures", n))
	if n >= deps.MaxAuthFails {
		c.Send("denied, closing")
		c.Quit()
		return
	}
	c.Send("denied")
}
