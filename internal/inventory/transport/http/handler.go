package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/orderflow-labs/orderflow/internal/inventory/domain"
	"github.com/orderflow-labs/orderflow/internal/inventory/repository"
	"github.com/orderflow-labs/orderflow/internal/inventory/service"
	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	service  service.InventoryService
	logger   *zap.Logger
	validate *validator.Validate
}

func NewInventoryHandler(service service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

type reserveRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	OrderID   string `json:"orderId" validate:"required"`
}

type stockRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description" validate:"required"`
	Price         int64  `json:"price" validate:"gte=0"`
	OriginalPrice int64  `json:"originalPrice" validate:"gte=0"`
	Stock         int64  `json:"stock" validate:"gte=0"`
	SKU           string `json:"sku" validate:"required"`
	Category      string `json:"category" validate:"required"`
}

type adjustStockRequest struct {
	Quantity int64 `json:"quantity" validate:"required"`
}

func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	product, err := h.service.Reserve(c.UserContext(), req.OrderID, req.ProductID, req.Quantity)
	if err != nil {
		return h.stockError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Stock reserved successfully",
		"product": product,
	})
}

func (h *InventoryHandler) Release(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	product, err := h.service.Release(c.UserContext(), req.ProductID, req.Quantity)
	if err != nil {
		return h.stockError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Stock released successfully",
		"product": product,
	})
}

func (h *InventoryHandler) Confirm(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	product, err := h.service.Confirm(c.UserContext(), req.ProductID, req.Quantity)
	if err != nil {
		return h.stockError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Stock confirmed successfully",
		"product": product,
	})
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	product := &domain.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Stock:         req.Stock,
		SKU:           req.SKU,
		Category:      req.Category,
		IsActive:      true,
	}

	if err := h.service.CreateProduct(c.UserContext(), product); err != nil {
		if errors.Is(err, repository.ErrSKUExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}

		h.logger.Error("create product failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
		}

		h.logger.Error("get product failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(product)
}

func (h *InventoryHandler) AdjustStock(c *fiber.Ctx) error {
	var req adjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	product, err := h.service.AdjustStock(c.UserContext(), c.Params("id"), req.Quantity)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
		}

		h.logger.Error("adjust stock failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{
		"message": "Stock updated successfully",
		"product": product,
	})
}

func (h *InventoryHandler) stockError(c *fiber.Ctx, err error) error {
	var insufficientErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	case errors.As(err, &insufficientErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "Insufficient stock",
			"available": insufficientErr.Available,
			"requested": insufficientErr.Requested,
		})
	case errors.Is(err, repository.ErrVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrExcessRelease),
		errors.Is(err, domain.ErrInvalidConfirm),
		errors.Is(err, domain.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error("stock operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
