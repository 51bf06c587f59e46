package server

import (
	"context"
	"fmt"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/service"

	"github.com/gofiber/fiber/v2"
)

type profileForm struct {
	UserID         uint
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
}

func profileFormFor(u *models.User) profileForm {
	return profileForm{
		UserID:         u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ImageURL:       u.ImageURL,
		HeaderImageURL: u.HeaderImageURL,
		Bio:            u.Bio,
		Location:       u.Location,
	}
}

// viewerState returns what the signed-in viewer follows and likes, for
// drawing buttons. Signed-out viewers get empty sets.
func (s *Server) viewerState(c *fiber.Ctx) (following, liked map[uint]bool, err error) {
	viewer := middleware.CurrentUser(c)
	if viewer == nil {
		return map[uint]bool{}, map[uint]bool{}, nil
	}
	ctx := c.UserContext()
	if following, err = s.userService.FollowingSet(ctx, viewer.ID); err != nil {
		return nil, nil, err
	}
	if liked, err = s.messageService.LikedSet(ctx, viewer.ID); err != nil {
		return nil, nil, err
	}
	return following, liked, nil
}

// ListUsers handles GET /users?q=&limit=&offset=
func (s *Server) ListUsers(c *fiber.Ctx) error {
	q := c.Query("q")
	page := parsePagination(c, defaultPageSize)

	// One extra row tells whether a next page exists.
	users, err := s.userService.ListUsers(c.UserContext(), q, page.Limit+1, page.Offset)
	if err != nil {
		return err
	}
	hasMore := len(users) > page.Limit
	if hasMore {
		users = users[:page.Limit]
	}

	following, _, err := s.viewerState(c)
	if err != nil {
		return err
	}

	return s.render(c, fiber.StatusOK, "users/index", fiber.Map{
		"Users":     users,
		"Following": following,
		"Query":     q,
		"Limit":     page.Limit,
		"Offset":    page.Offset,
		"HasMore":   hasMore,
	})
}

// ShowUser handles GET /users/:id
func (s *Server) ShowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}

	following, liked, err := s.viewerState(c)
	if err != nil {
		return err
	}

	return s.render(c, fiber.StatusOK, "users/show", fiber.Map{
		"User":        profile.User,
		"Counts":      profile.Counts,
		"Messages":    profile.Messages,
		"Liked":       liked,
		"IsFollowing": following[profile.User.ID],
	})
}

// ShowFollowing handles GET /users/:id/following
func (s *Server) ShowFollowing(c *fiber.Ctx) error {
	return s.showRelations(c, "users/following", s.userService.Following)
}

// ShowFollowers handles GET /users/:id/followers
func (s *Server) ShowFollowers(c *fiber.Ctx) error {
	return s.showRelations(c, "users/followers", s.userService.Followers)
}

type relationLister func(ctx context.Context, id uint) (*models.User, []models.User, error)

func (s *Server) showRelations(c *fiber.Ctx, page string, list relationLister) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	owner, users, err := list(ctx, id)
	if err != nil {
		return err
	}
	counts, err := s.userRepo.Counts(ctx, id)
	if err != nil {
		return err
	}
	following, _, err := s.viewerState(c)
	if err != nil {
		return err
	}

	return s.render(c, fiber.StatusOK, page, fiber.Map{
		"User":        owner,
		"Counts":      counts,
		"Users":       users,
		"Following":   following,
		"IsFollowing": following[owner.ID],
	})
}

// ShowLikes handles GET /users/:id/likes
func (s *Server) ShowLikes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	owner, messages, err := s.messageService.LikedMessages(ctx, id)
	if err != nil {
		return err
	}
	counts, err := s.userRepo.Counts(ctx, id)
	if err != nil {
		return err
	}
	following, liked, err := s.viewerState(c)
	if err != nil {
		return err
	}

	return s.render(c, fiber.StatusOK, "users/likes", fiber.Map{
		"User":        owner,
		"Counts":      counts,
		"Messages":    messages,
		"Liked":       liked,
		"IsFollowing": following[owner.ID],
	})
}

// Follow handles POST /users/follow/:follow_id
func (s *Server) Follow(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id, err := parseID(c, "follow_id")
	if err != nil {
		return err
	}

	if err := s.userService.Follow(c.UserContext(), user.ID, id); err != nil {
		msg := userMessage(err)
		if msg == "" {
			return err
		}
		flash(c, "danger", msg)
		return c.RedirectBack("/", fiber.StatusFound)
	}

	middleware.RecordAction("follow")
	return redirect(c, fmt.Sprintf("/users/%d/following", user.ID))
}

// StopFollowing handles POST /users/stop-following/:follow_id
func (s *Server) StopFollowing(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id, err := parseID(c, "follow_id")
	if err != nil {
		return err
	}

	if err := s.userService.Unfollow(c.UserContext(), user.ID, id); err != nil {
		return err
	}

	middleware.RecordAction("unfollow")
	return redirect(c, fmt.Sprintf("/users/%d/following", user.ID))
}

// AddLike handles POST /users/add_like/:message_id
func (s *Server) AddLike(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id, err := parseID(c, "message_id")
	if err != nil {
		return err
	}

	if err := s.messageService.Like(c.UserContext(), user.ID, id); err != nil {
		msg := userMessage(err)
		if msg == "" {
			return err
		}
		flash(c, "danger", msg)
	} else {
		middleware.RecordAction("like")
	}
	return c.RedirectBack("/", fiber.StatusFound)
}

// RemoveLike handles POST /users/remove_like/:message_id
func (s *Server) RemoveLike(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id, err := parseID(c, "message_id")
	if err != nil {
		return err
	}

	if err := s.messageService.Unlike(c.UserContext(), user.ID, id); err != nil {
		return err
	}

	middleware.RecordAction("unlike")
	return c.RedirectBack("/", fiber.StatusFound)
}

// EditProfileForm handles GET /users/profile
func (s *Server) EditProfileForm(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return s.render(c, fiber.StatusOK, "users/edit", fiber.Map{"Form": profileFormFor(user)})
}

// UpdateProfile handles POST /users/profile. The current password must be
// re-entered; a wrong one leaves the profile untouched.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	form := profileForm{
		UserID:         user.ID,
		Username:       c.FormValue("username"),
		Email:          c.FormValue("email"),
		ImageURL:       c.FormValue("image_url"),
		HeaderImageURL: c.FormValue("header_image_url"),
		Bio:            c.FormValue("bio"),
		Location:       c.FormValue("location"),
	}

	updated, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         user.ID,
		Username:       form.Username,
		Email:          form.Email,
		ImageURL:       form.ImageURL,
		HeaderImageURL: form.HeaderImageURL,
		Bio:            form.Bio,
		Location:       form.Location,
		Password:       c.FormValue("password"),
	})
	if err != nil {
		msg := userMessage(err)
		switch models.ErrorCode(err) {
		case models.CodeUnauthorized:
			msg = "Wrong password, please try again."
		case models.CodeConflict:
			msg = "Username or email already taken"
		}
		if msg == "" {
			return err
		}
		return s.render(c, fiber.StatusOK, "users/edit", fiber.Map{
			"Form":    form,
			"Flashes": inline("danger", msg),
		})
	}

	if auth := middleware.CurrentAuth(c); auth != nil {
		auth.User = updated
	}
	flash(c, "success", "Profile updated.")
	return redirect(c, fmt.Sprintf("/users/%d", updated.ID))
}

// DeleteUser handles POST /users/delete
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := s.userService.DeleteAccount(c.UserContext(), user.ID); err != nil {
		return err
	}

	middleware.SignOut(c)
	middleware.RecordAuth("delete_account", "success")
	return redirect(c, "/signup")
}
