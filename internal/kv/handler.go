package kv

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes raw get/set access to the store.
type Handler struct {
	store Store
}

// NewHandler builds the generic key-value HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func keyParam(c *fiber.Ctx) (string, error) {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return "", fiber.NewError(http.StatusBadRequest, "key is required")
	}
	return key, nil
}

// Get returns the stored document or 404 when absent.
func (h *Handler) Get(c *fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	value, ok, err := h.store.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(http.StatusNotFound, "key not found")
	}
	return c.Status(http.StatusOK).JSON(remoteItem{Key: key, Value: value})
}

// Put overwrites the document with the raw JSON request body.
func (h *Handler) Put(c *fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	body := c.Body()
	if !json.Valid(body) {
		return fiber.NewError(http.StatusBadRequest, "body must be valid JSON")
	}
	value := json.RawMessage(append([]byte(nil), body...))
	if err := h.store.Set(c.UserContext(), key, value); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(remoteItem{Key: key, Value: value})
}

// Delete removes the key. Deleting a missing key succeeds.
func (h *Handler) Delete(c *fiber.Ctx) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.UserContext(), key); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
