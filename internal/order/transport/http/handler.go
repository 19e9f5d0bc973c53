package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/orderflow-labs/orderflow/internal/order/repository"
	"github.com/orderflow-labs/orderflow/internal/order/service"
	"github.com/orderflow-labs/orderflow/pkg/outbox/worker"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

const recentEventsLimit = 50

type OrderHandler struct {
	service    service.OrderService
	outboxRepo worker.OutboxRepository
	processor  *worker.OutboxProcessor
	logger     *zap.Logger
	validate   *validator.Validate
}

func NewOrderHandler(
	service service.OrderService,
	outboxRepo worker.OutboxRepository,
	processor *worker.OutboxProcessor,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		service:    service,
		outboxRepo: outboxRepo,
		processor:  processor,
		logger:     logger,
		validate:   validator.New(),
	}
}

type updateStatusRequest struct {
	Status          *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED FAILED CANCELLED"`
	InventoryStatus *string `json:"inventoryStatus" validate:"omitempty,oneof=PENDING RESERVED CONFIRMED FAILED"`
	FailureReason   *string `json:"failureReason"`
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	idempotencyKey := c.Get("Idempotency-Key")
	if idempotencyKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Idempotency-Key header is required"})
	}

	var input service.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	order, replayed, err := h.service.CreateOrder(c.UserContext(), userID, idempotencyKey, input)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
		case errors.Is(err, repository.ErrProductInactive):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			h.logger.Error("create order failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	status := fiber.StatusCreated
	if replayed {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(order)
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)

	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
		case errors.Is(err, service.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		default:
			h.logger.Error("get order failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.JSON(order)
}

func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), c.Params("id"), service.StatusUpdate{
		Status:          req.Status,
		InventoryStatus: req.InventoryStatus,
		FailureReason:   req.FailureReason,
	})
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
		}

		h.logger.Error("update order status failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(order)
}

// PublishOutbox runs one relay batch on demand, mainly for debugging and
// tests that cannot wait for the ticker.
func (h *OrderHandler) PublishOutbox(c *fiber.Ctx) error {
	published, err := h.processor.ProcessBatch(c.UserContext())
	if err != nil {
		h.logger.Error("manual outbox publish failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{"published": published})
}

func (h *OrderHandler) ListOutboxEvents(c *fiber.Ctx) error {
	events, err := h.outboxRepo.ListRecent(c.UserContext(), recentEventsLimit)
	if err != nil {
		h.logger.Error("list outbox events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{"events": events})
}
