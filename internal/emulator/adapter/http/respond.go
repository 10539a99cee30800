package http

import "github.com/gofiber/fiber/v2"

// errorBody is the error shape every endpoint speaks. Clients surface the
// message and branch on the code, so both stay stable.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeError(c *fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(errorBody{Message: message, Code: code})
}
