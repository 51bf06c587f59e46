// Package middleware provides HTTP middleware: the session gate, request
// logging, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warbler/internal/models"
	"warbler/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the session gate.
const (
	LocalAuth   = "auth"
	LocalUserID = "userID"
)

// UnauthorizedMessage is flashed when a signed-out visitor hits a protected route.
const UnauthorizedMessage = "Access unauthorized."

// UserLoader resolves the user named by a session.
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// SessionOptions controls the session cookie.
type SessionOptions struct {
	Secure bool
}

// SessionGate loads the request's session and resolves its user before the
// handler runs, then persists any session changes afterwards. A session
// naming a user that no longer exists is treated as signed out and its user
// entry is dropped.
func SessionGate(mgr *session.Manager, users UserLoader, opts SessionOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		auth := &session.AuthContext{Session: loadSession(ctx, c, mgr)}
		c.Locals(LocalAuth, auth)

		if uid, ok := auth.Session.UserID(); ok {
			user, err := users.GetByID(ctx, uid)
			switch {
			case err == nil:
				setUser(c, auth, user)
			case models.IsNotFound(err):
				Logger.InfoContext(ctx, "session user no longer exists", slog.Uint64("user_id", uint64(uid)))
				auth.Session.Logout()
			default:
				return err
			}
		}

		err := c.Next()
		if err != nil {
			// Let the error handler render first so flashes it pops are saved.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		token, cleared, cerr := mgr.Commit(c.UserContext(), auth.Session)
		switch {
		case cerr != nil:
			Logger.ErrorContext(c.UserContext(), "failed to persist session", slog.String("error", cerr.Error()))
		case token != "":
			c.Cookie(&fiber.Cookie{
				Name:     session.CookieName,
				Value:    token,
				Path:     "/",
				Expires:  time.Now().Add(mgr.TTL()),
				HTTPOnly: true,
				Secure:   opts.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		case cleared:
			c.ClearCookie(session.CookieName)
		}
		return nil
	}
}

func loadSession(ctx context.Context, c *fiber.Ctx, mgr *session.Manager) *session.Session {
	token := c.Cookies(session.CookieName)
	if token == "" {
		return mgr.New()
	}

	sess, err := mgr.Load(ctx, token)
	if err == nil {
		return sess
	}
	if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrNotFound) {
		Logger.WarnContext(ctx, "session lookup failed", slog.String("error", err.Error()))
	}
	c.ClearCookie(session.CookieName)
	return mgr.New()
}

// LoginRequired redirects signed-out visitors to the home page with a flash.
func LoginRequired(c *fiber.Ctx) error {
	if CurrentUser(c) != nil {
		return c.Next()
	}
	if sess := CurrentSession(c); sess != nil {
		sess.Flash("danger", UnauthorizedMessage)
	}
	return c.Redirect("/", fiber.StatusFound)
}

// CurrentAuth returns the request's auth context, or nil outside the gate.
func CurrentAuth(c *fiber.Ctx) *session.AuthContext {
	auth, _ := c.Locals(LocalAuth).(*session.AuthContext)
	return auth
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	if auth := CurrentAuth(c); auth != nil {
		return auth.User
	}
	return nil
}

// CurrentSession returns the request's session, or nil outside the gate.
func CurrentSession(c *fiber.Ctx) *session.Session {
	if auth := CurrentAuth(c); auth != nil {
		return auth.Session
	}
	return nil
}

func setUser(c *fiber.Ctx, auth *session.AuthContext, user *models.User) {
	auth.User = user
	c.Locals(LocalUserID, user.ID)
	c.SetUserContext(WithUserID(c.UserContext(), user.ID))
}

// SignIn records user as the session's user and exposes it to the rest of
// the request.
func SignIn(c *fiber.Ctx, user *models.User) {
	auth := CurrentAuth(c)
	if auth == nil {
		return
	}
	auth.Session.Login(user.ID)
	setUser(c, auth, user)
}

// SignOut removes the session's user entry, if any.
func SignOut(c *fiber.Ctx) {
	auth := CurrentAuth(c)
	if auth == nil {
		return
	}
	auth.Session.Logout()
	auth.User = nil
	c.Locals(LocalUserID, uint(0))
}
