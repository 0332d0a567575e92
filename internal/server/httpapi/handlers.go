package httpapi

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/observability"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// accountView is the public form of an account. The password hash never
// leaves the service.
type accountView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	CreatedAt   time.Time `json:"created_date"`
	Status      bool      `json:"status"`
	IsSuperuser bool      `json:"is_superuser"`
	IsStaff     bool      `json:"is_staff"`
}

func newAccountView(a *models.Account) accountView {
	return accountView{
		ID:          a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		CreatedAt:   a.CreatedAt,
		Status:      a.Status,
		IsSuperuser: a.IsSuperuser,
		IsStaff:     a.IsStaff,
	}
}

type createdResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errMalformedBody
	}
	return nil
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) register(c *fiber.Ctx) error {
	var in services.AccountInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	a, err := s.accounts.Register(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(createdResponse{Message: "user created successfully", ID: a.ID})
}

func (s *Server) login(c *fiber.Ctx) error {
	var in services.LoginInput
	if err := parseBody(c, &in); err != nil {
		s.metrics.ObserveLogin(observability.LoginInvalidRequest)
		return err
	}

	pair, err := s.auth.Login(c.UserContext(), in)
	s.metrics.ObserveLogin(loginOutcome(err))
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return observability.LoginSuccess
	case errors.Is(err, common.ErrInvalidCredentials):
		return observability.LoginInvalidCredentials
	case errors.Is(err, common.ErrAccountInactive):
		return observability.LoginInactive
	case errors.Is(err, common.ErrValidation):
		return observability.LoginInvalidRequest
	default:
		return observability.LoginError
	}
}

func (s *Server) refresh(c *fiber.Ctx) error {
	var in refreshRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.Refresh == "" {
		return common.NewFieldError("refresh", "cannot be blank", nil)
	}

	pair, err := s.auth.Refresh(c.UserContext(), in.Refresh)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

func (s *Server) passwordEmail(c *fiber.Ctx) error {
	var in services.PasswordResetInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	if err := s.accounts.RequestPasswordReset(c.UserContext(), in); err != nil {
		return err
	}

	return c.JSON(messageResponse{Message: "recovery email sent"})
}

func (s *Server) adminCreate(c *fiber.Ctx) error {
	var in services.AccountInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	a, err := s.accounts.AdminCreate(c.UserContext(), principal(c), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(createdResponse{Message: "user created successfully", ID: a.ID})
}

func (s *Server) list(c *fiber.Ctx) error {
	accounts, err := s.accounts.List(c.UserContext(), principal(c))
	if err != nil {
		return err
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	return c.JSON(views)
}

func (s *Server) retrieve(c *fiber.Ctx) error {
	a, err := s.accounts.Get(c.UserContext(), principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(newAccountView(a))
}

func (s *Server) update(c *fiber.Ctx) error {
	var in services.UpdateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	if _, err := s.accounts.Update(c.UserContext(), principal(c), c.Params("id"), in); err != nil {
		return err
	}

	return c.JSON(messageResponse{Message: "user updated successfully"})
}

func (s *Server) deactivate(c *fiber.Ctx) error {
	if _, err := s.accounts.Deactivate(c.UserContext(), principal(c), c.Params("id")); err != nil {
		return err
	}

	return c.JSON(messageResponse{Message: "user deleted successfully"})
}
