// services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ValidationError covers malformed input and references to entities that
// exist but are not part of the target (e.g. a player not in the game).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError covers mutations of finalized games and duplicate entities.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// RangeViolation rejects a whole score batch when any resulting score would
// leave the configured [min, max] window. No partial application.
type RangeViolation struct {
	PlayerID string
	Score    int
	Min      int
	Max      int
}

func (e *RangeViolation) Error() string {
	return fmt.Sprintf("score %d for player %s outside allowed range [%d, %d]", e.Score, e.PlayerID, e.Min, e.Max)
}

// NotFoundError signals an unknown environment, game, player or other
// addressable entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func notFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// RespondError maps a service error to the matching HTTP response. All
// handlers report failures through this single mapper.
func RespondError(c *fiber.Ctx, err error) error {
	var (
		ve *ValidationError
		ce *ConflictError
		rv *RangeViolation
		nf *NotFoundError
	)
	switch {
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &rv):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
