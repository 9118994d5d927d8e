package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// EnvelopeSchema is the JSON schema clients can validate APIResponse against.
const EnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["success", "message"],
  "properties": {
    "success": {"type": "boolean"},
    "message": {"type": "string", "minLength": 1},
    "data": {},
    "meta": {"type": "object"},
    "details": {"type": "object"}
  },
  "additionalProperties": false
}`

func write(c *fiber.Ctx, status int, body APIResponse) error {
	if body.Message == "" {
		body.Message = "success"
		if !body.Success {
			body.Message = "error"
		}
	}
	return c.Status(status).JSON(body)
}

// SendSuccess responds 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return write(c, fiber.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// SendSuccessWithStatus responds with data and a custom status, 200 when status is zero.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return write(c, status, APIResponse{Success: true, Message: message, Data: data})
}

// SendError responds with a failure envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return write(c, status, APIResponse{Message: message})
}

// OK responds 200 with data and list metadata such as pagination.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return write(c, fiber.StatusOK, APIResponse{Success: true, Message: message, Data: data, Meta: meta})
}

// Fail responds with a failure envelope carrying details, usually field errors.
// A zero status means 400.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if status == 0 {
		status = fiber.StatusBadRequest
	}
	return write(c, status, APIResponse{Message: message, Details: details})
}
