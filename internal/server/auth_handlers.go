package server

import (
	"fmt"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/service"
	"warbler/internal/session"

	"github.com/gofiber/fiber/v2"
)

type signupForm struct {
	Username string
	Email    string
	ImageURL string
}

type loginForm struct {
	Username string
}

// Home handles GET /. Signed-out visitors get the landing page; everyone
// else gets their timeline.
func (s *Server) Home(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return s.render(c, fiber.StatusOK, "home/anon", nil)
	}
	return s.renderTimeline(c, user, nil)
}

func (s *Server) renderTimeline(c *fiber.Ctx, user *models.User, flashes []session.Flash) error {
	ctx := c.UserContext()

	messages, err := s.messageService.Timeline(ctx, user.ID)
	if err != nil {
		return err
	}
	liked, err := s.messageService.LikedSet(ctx, user.ID)
	if err != nil {
		return err
	}
	counts, err := s.userRepo.Counts(ctx, user.ID)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Messages": messages,
		"Liked":    liked,
		"Counts":   counts,
	}
	if flashes != nil {
		data["Flashes"] = flashes
	}
	return s.render(c, fiber.StatusOK, "home/timeline", data)
}

// SignupForm handles GET /signup
func (s *Server) SignupForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "users/signup", fiber.Map{"Form": signupForm{}})
}

// Signup handles POST /signup. The new user is signed in straight away.
func (s *Server) Signup(c *fiber.Ctx) error {
	form := signupForm{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		ImageURL: c.FormValue("image_url"),
	}

	user, err := s.authService.SignupUser(c.UserContext(), service.SignupInput{
		Username: form.Username,
		Email:    form.Email,
		Password: c.FormValue("password"),
		ImageURL: form.ImageURL,
	})
	if err != nil {
		msg := userMessage(err)
		if models.ErrorCode(err) == models.CodeConflict {
			msg = "Username or email already taken"
		}
		if msg == "" {
			middleware.RecordAuth("signup", "error")
			return err
		}
		middleware.RecordAuth("signup", "rejected")
		return s.render(c, fiber.StatusOK, "users/signup", fiber.Map{
			"Form":    form,
			"Flashes": inline("danger", msg),
		})
	}

	middleware.SignIn(c, user)
	middleware.RecordAuth("signup", "success")
	flash(c, "success", fmt.Sprintf("Welcome to Warbler, %s!", user.Username))
	return redirect(c, "/")
}

// LoginForm handles GET /login
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "users/login", fiber.Map{"Form": loginForm{}})
}

// Login handles POST /login. Both outcomes render with 200: the timeline
// with a greeting, or the form with a generic error.
func (s *Server) Login(c *fiber.Ctx) error {
	form := loginForm{Username: c.FormValue("username")}

	result, err := s.authService.Authenticate(c.UserContext(), form.Username, c.FormValue("password"))
	if err != nil {
		middleware.RecordAuth("login", "error")
		return err
	}
	if !result.OK() {
		middleware.RecordAuth("login", "failure")
		return s.render(c, fiber.StatusOK, "users/login", fiber.Map{
			"Form":    form,
			"Flashes": inline("danger", "Invalid credentials."),
		})
	}

	middleware.SignIn(c, result.User)
	middleware.RecordAuth("login", "success")
	return s.renderTimeline(c, result.User, inline("success", fmt.Sprintf("Hello, %s!", result.User.Username)))
}

// Logout handles GET /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if middleware.CurrentUser(c) != nil {
		middleware.SignOut(c)
		middleware.RecordAuth("logout", "success")
		flash(c, "success", "You have successfully logged out.")
	}
	return redirect(c, "/login")
}
