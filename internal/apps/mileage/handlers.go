package mileage

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LogHandler struct {
	service *LogService
}

func NewLogHandler(service *LogService) *LogHandler {
	return &LogHandler{service: service}
}

func (h *LogHandler) Generate(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req GenerateLogRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	log, err := h.service.Generate(c.UserContext(), userID, req)
	if err != nil {
		if errors.Is(err, ErrVehicleRequired) ||
			errors.Is(err, ErrInvalidDate) ||
			errors.Is(err, ErrInvalidRange) ||
			errors.Is(err, ErrRangeTooLong) ||
			errors.Is(err, ErrInvalidOdometer) ||
			errors.Is(err, ErrNoBusinessDays) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		slog.Error("mileage log generation failed", "user_id", userID.String(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to generate mileage log",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(log)
}

func (h *LogHandler) List(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	logs, total, err := h.service.List(c.UserContext(), userID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch mileage logs",
		})
	}

	return c.JSON(ListLogsResponse{Logs: logs, Total: total})
}

func (h *LogHandler) Get(c *fiber.Ctx) error {
	log, status, msg := h.load(c)
	if log == nil {
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: msg})
	}
	return c.JSON(log)
}

func (h *LogHandler) Export(c *fiber.Ctx) error {
	log, status, msg := h.load(c)
	if log == nil {
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: msg})
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, log); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to export mileage log",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="mileage-%s.csv"`, log.StartDate.Format(dateLayout)))
	return c.Send(buf.Bytes())
}

func (h *LogHandler) Delete(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	logID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid log ID",
		})
	}

	if err := h.service.Delete(c.UserContext(), userID, logID); err != nil {
		if errors.Is(err, ErrLogNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete mileage log",
		})
	}

	return c.JSON(fiber.Map{"message": "Mileage log deleted"})
}

// load resolves the :id log for the current user, returning a status and
// message when it cannot.
func (h *LogHandler) load(c *fiber.Ctx) (*MileageLog, int, string) {
	userID, err := session.GetUserID(c)
	if err != nil {
		return nil, fiber.StatusUnauthorized, "Unauthorized"
	}

	logID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, "Invalid log ID"
	}

	log, err := h.service.Get(c.UserContext(), userID, logID)
	if err != nil {
		if errors.Is(err, ErrLogNotFound) {
			return nil, fiber.StatusNotFound, err.Error()
		}
		return nil, fiber.StatusInternalServerError, "Failed to fetch mileage log"
	}
	return log, fiber.StatusOK, ""
}
