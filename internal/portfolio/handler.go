package portfolio

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/userstate"
)

// Handler exposes investment and funding endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a portfolio HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Invest records a new investment.
func (h *Handler) Invest(c *fiber.Ctx) error {
	var req NewInvestment
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.service.Invest(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")), req)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(inv)
}

// Fund records a deposit.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req FundingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Fund(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")), req)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Transactions lists the user's history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.Transactions(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(txs)
}

// Summary values the user's portfolio.
func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Value(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(summary)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrInvalidCard),
		errors.Is(err, ErrInvalidYield):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDeclined):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	default:
		return err
	}
}
