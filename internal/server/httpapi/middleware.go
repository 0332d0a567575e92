package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/policy"
	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// observe renders handler errors, then records the request in metrics and
// the log. Unknown errors are logged with their full chain.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		status, body := errorResponse(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
		}
		if werr := c.Status(status).JSON(body); werr != nil {
			return werr
		}
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	s.metrics.ObserveRequest(route, status)
	s.logger.Info(c.UserContext(), "request",
		"method", c.Method(),
		"route", route,
		"status", status,
		"duration", time.Since(start).String(),
	)

	return nil
}

// authenticate resolves the bearer token into a principal stored in Locals.
func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get(common.AuthorizationHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) || strings.TrimSpace(token) == "" {
		return common.ErrUnauthenticated
	}

	p, err := s.auth.Authenticate(c.UserContext(), strings.TrimSpace(token))
	if err != nil {
		return err
	}

	c.Locals(principalKey, p)
	return c.Next()
}

// requireAdmin runs before any body parsing so non-admins get 403 whatever
// they sent.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if err := policy.AuthorizeAdmin(principal(c)); err != nil {
		return err
	}
	return c.Next()
}

func principal(c *fiber.Ctx) *policy.Principal {
	p, _ := c.Locals(principalKey).(*policy.Principal)
	return p
}
