package routes

import (
	"github.com/gin-gonic/gin"

	"grin-gateway/controllers"
	"grin-gateway/middleware"
)

func RegisterRoutes(r *gin.Engine, pc *controllers.PaymentController, jwtSecret string) {
	payments := r.Group("/payments/grin")
	payments.POST("/checkout/:order_id", middleware.AuthMiddleware(), pc.InitiateCheckout)
	payments.GET("/orders/:order_id/instructions", pc.Instructions)
	payments.POST("/orders/:order_id/refresh-rate", middleware.RefreshRateLimit(), pc.RefreshRate)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminOnly(jwtSecret))
	admin.GET("/orders/grin-amounts", pc.AdminGrinAmounts)
}
