package server

import (
	"errors"
	"strings"
	"unicode"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/session"
	"warbler/internal/views"

	"github.com/gofiber/fiber/v2"
)

// pageTitles label the browser tab for pages without a profile owner.
var pageTitles = map[string]string{
	"users/signup":  "Sign up",
	"users/login":   "Log in",
	"users/index":   "Users",
	"users/edit":    "Edit profile",
	"messages/new":  "New message",
	"messages/show": "Warble",
}

// profileTitles suffix the owner's handle on profile pages.
var profileTitles = map[string]string{
	"users/show":      "",
	"users/following": " follows",
	"users/followers": " followers",
	"users/likes":     " likes",
}

var onboardingPages = map[string]bool{
	"home/anon":    true,
	"users/login":  true,
	"users/signup": true,
}

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize    = 20
	maxPaginationLimit = 50
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint. Anything
// else is reported as a missing resource, since no such page exists.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewNotFoundError(humanizeParam(param), c.Params(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a resource label.
// Examples: "id" -> "Resource", "message_id" -> "Message", "follow_id" -> "Follow".
func humanizeParam(param string) string {
	base := strings.TrimSuffix(param, "_id")
	if base == "id" || base == "" {
		return "Resource"
	}
	words := strings.Split(base, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		if i == 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// render executes a page with the signed-in user and pending flashes added
// to data. Flashes already present in data are shown after the queued ones.
func (s *Server) render(c *fiber.Ctx, status int, page string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}

	var flashes []session.Flash
	if sess := middleware.CurrentSession(c); sess != nil {
		flashes = sess.PopFlashes()
	}
	if inline, ok := data["Flashes"].([]session.Flash); ok {
		flashes = append(flashes, inline...)
	}

	data["Flashes"] = flashes
	data["CurrentUser"] = middleware.CurrentUser(c)
	if _, ok := data["Query"]; !ok {
		data["Query"] = ""
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = pageTitle(page, data)
	}
	if onboardingPages[page] {
		data["BodyClass"] = "onboarding"
	}

	return c.Status(status).Render(page, data, views.DefaultLayout)
}

func pageTitle(page string, data fiber.Map) string {
	if suffix, ok := profileTitles[page]; ok {
		if owner, ok := data["User"].(*models.User); ok && owner != nil {
			return "@" + owner.Username + suffix
		}
	}
	return pageTitles[page]
}

// flash queues a message for the next rendered page.
func flash(c *fiber.Ctx, category, message string) {
	if sess := middleware.CurrentSession(c); sess != nil {
		sess.Flash(category, message)
	}
}

// inline builds flashes shown on the page being rendered.
func inline(category, message string) []session.Flash {
	return []session.Flash{{Category: category, Message: message}}
}

func redirect(c *fiber.Ctx, location string) error {
	return c.Redirect(location, fiber.StatusFound)
}

// userMessage returns the text of an AppError worth showing to a user, or
// "" for errors that should surface through the error page instead.
func userMessage(err error) string {
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeConstraint, models.CodeConflict, models.CodeUnauthorized, models.CodeForbidden:
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr.Message
		}
	}
	return ""
}
