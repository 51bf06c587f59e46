package server

import (
	"fmt"

	"warbler/internal/middleware"
	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

// NewMessageForm handles GET /messages/new
func (s *Server) NewMessageForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "messages/new", fiber.Map{"Text": ""})
}

// CreateMessage handles POST /messages/new and redirects to the author's page.
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	text := c.FormValue("text")

	if _, err := s.messageService.Create(c.UserContext(), user.ID, text); err != nil {
		switch models.ErrorCode(err) {
		case models.CodeValidation:
			return s.render(c, fiber.StatusOK, "messages/new", fiber.Map{
				"Text":    text,
				"Flashes": inline("danger", userMessage(err)),
			})
		case models.CodeConstraint:
			// The author vanished between the session check and the insert.
			flash(c, "danger", middleware.UnauthorizedMessage)
			return redirect(c, "/")
		default:
			return err
		}
	}

	middleware.RecordAction("message")
	return redirect(c, fmt.Sprintf("/users/%d", user.ID))
}

// ShowMessage handles GET /messages/:id
func (s *Server) ShowMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	msg, err := s.messageService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	viewer := middleware.CurrentUser(c)
	return s.render(c, fiber.StatusOK, "messages/show", fiber.Map{
		"Message":   msg,
		"CanDelete": viewer != nil && viewer.ID == msg.UserID,
	})
}

// DeleteMessage handles POST /messages/:id/delete. It always redirects;
// only the author's request removes anything.
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.messageService.Delete(c.UserContext(), user.ID, id); err != nil {
		switch models.ErrorCode(err) {
		case models.CodeForbidden, models.CodeNotFound:
			flash(c, "danger", middleware.UnauthorizedMessage)
			return redirect(c, "/")
		default:
			return err
		}
	}

	middleware.RecordAction("delete_message")
	return redirect(c, fmt.Sprintf("/users/%d", user.ID))
}
