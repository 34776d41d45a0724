package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grin-gateway/apperrors"
	"grin-gateway/config"
	"grin-gateway/models"
	"grin-gateway/repository"
	"grin-gateway/services"
)

type PaymentController struct {
	Checkout *services.CheckoutService
	Refresh  *services.RateRefreshService
	Repo     repository.OrderRepository
	Cfg      *config.Config
	Logger   *zap.Logger
}

// InitiateCheckout handles the storefront's checkout trigger for an order.
func (pc *PaymentController) InitiateCheckout(c *gin.Context) {
	if !pc.Cfg.Enabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"result": "failure", "error": "GRIN payments are disabled"})
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "failure", "error": "Invalid order ID"})
		return
	}

	result, err := pc.Checkout.InitiateCheckout(c.Request.Context(), orderID)
	if err != nil {
		pc.respondCheckoutError(c, orderID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (pc *PaymentController) respondCheckoutError(c *gin.Context, orderID uuid.UUID, err error) {
	pc.Logger.Warn("Checkout failed", zap.String("order_id", orderID.String()), zap.Error(err))

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{"result": "failure", "error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"result": "failure", "error": "Payment could not be initiated"})
}

// Instructions returns the thank-you page data: where to send GRIN, how much,
// and which reference to include. The host renders this however it likes.
func (pc *PaymentController) Instructions(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	ctx := c.Request.Context()
	if _, err := pc.Repo.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	meta, err := pc.Repo.GetMeta(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payment details"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":             pc.Cfg.Title,
		"description":       pc.Cfg.Description,
		"slatepack_address": pc.Cfg.SlatepackAddress,
		"payment_reference": meta[models.MetaPaymentReference],
		"grin_amount":       formatAmount(meta[models.MetaGrinAmount]),
		"instructions": []string{
			"Open your GRIN wallet",
			"Create a new transaction using the Slatepack address above",
			"Enter the exact amount shown",
			"Include the payment reference in the transaction message",
			"Complete the transaction",
		},
	})
}

// RefreshRate recomputes the GRIN amount for the polled payment page. Always
// answers with a success flag; failures reveal nothing about why.
func (pc *PaymentController) RefreshRate(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	amount, err := pc.Refresh.RefreshAmount(c.Request.Context(), orderID)
	if err != nil {
		pc.Logger.Warn("Rate refresh failed", zap.String("order_id", orderID.String()), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "grin_amount": amount})
}

// AdminGrinAmounts is the read-only GRIN amount projection for the admin
// order list.
func (pc *PaymentController) AdminGrinAmounts(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	ctx := c.Request.Context()
	orders, total, err := pc.Repo.FindGrinOrders(ctx, page, limit)
	if err != nil {
		pc.Logger.Error("Failed to list GRIN orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	rows := make([]gin.H, 0, len(orders))
	for _, order := range orders {
		grinAmount := "-"
		if meta, err := pc.Repo.GetMeta(ctx, order.ID); err == nil {
			if formatted := formatAmount(meta[models.MetaGrinAmount]); formatted != "" {
				grinAmount = formatted + " GRIN"
			}
		}
		rows = append(rows, gin.H{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"total":        order.Total,
			"currency":     order.Currency,
			"status":       order.Status,
			"grin_amount":  grinAmount,
			"created_at":   order.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": rows,
		"meta": gin.H{
			"page":         page,
			"limit":        limit,
			"total_orders": total,
			"has_more":     total > int64(page*limit),
		},
	})
}

func formatAmount(raw string) string {
	if raw == "" {
		return ""
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return ""
	}
	return amount.StringFixed(8)
}

func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
