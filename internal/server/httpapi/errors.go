package httpapi

import (
	"errors"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/gofiber/fiber/v2"
)

type messageResponse struct {
	Message string `json:"message"`
}

var errMalformedBody = errors.New("malformed request body")

// errorResponse maps an error to a status code and JSON body. It is the only
// place where service errors become HTTP statuses.
func errorResponse(err error) (int, any) {
	if ve, ok := common.AsValidationError(err); ok {
		return fiber.StatusBadRequest, ve.Fields
	}

	switch {
	case errors.Is(err, errMalformedBody):
		return fiber.StatusBadRequest, messageResponse{Message: errMalformedBody.Error()}
	case errors.Is(err, common.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, messageResponse{Message: common.ErrInvalidCredentials.Error()}
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return fiber.StatusUnauthorized, messageResponse{Message: common.ErrUnauthenticated.Error()}
	case errors.Is(err, common.ErrAccountInactive):
		return fiber.StatusForbidden, messageResponse{Message: common.ErrAccountInactive.Error()}
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden, messageResponse{Message: common.ErrForbidden.Error()}
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound, messageResponse{Message: "user not found"}
	case errors.Is(err, common.ErrMailDelivery):
		return fiber.StatusInternalServerError, messageResponse{Message: common.ErrMailDelivery.Error()}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, messageResponse{Message: fe.Message}
	}

	return fiber.StatusInternalServerError, messageResponse{Message: common.ErrorInternal.Error()}
}
