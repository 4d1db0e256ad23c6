package httpapi

import (
	"net/http"

	"cart-service/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Services struct {
	Cart      service.CartService
	Catalog   service.CatalogService
	Wishlist  service.WishlistService
	Dashboard service.DashboardService
}

func Router(svc Services, tokens TokenVerifier, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	cartH := NewCartHandler(svc.Cart, log)
	catalogH := NewCatalogHandler(svc.Catalog, log)
	wishH := NewWishlistHandler(svc.Wishlist, svc.Dashboard, log)

	api := r.Group("/api/v1")

	public := api.Group("", OptionalAuth(tokens))
	public.GET("/products", catalogH.ListProducts)
	public.GET("/products/:id", catalogH.GetProduct)
	public.GET("/categories", catalogH.ListCategories)

	authed := api.Group("", AuthRequired(tokens, log))
	authed.GET("/cart", cartH.Get)
	authed.POST("/cart/items", cartH.AddItem)
	authed.PATCH("/cart/items/:id", cartH.UpdateItem)
	authed.DELETE("/cart/items/:id", cartH.RemoveItem)
	authed.DELETE("/cart", cartH.Clear)

	authed.GET("/wishlist", wishH.List)
	authed.POST("/wishlist", wishH.Add)
	authed.DELETE("/wishlist/:product_id", wishH.Remove)
	authed.GET("/dashboard", wishH.Dashboard)

	admin := authed.Group("", AdminRequired())
	admin.POST("/products", catalogH.CreateProduct)
	admin.PATCH("/products/:id", catalogH.UpdateProduct)
	admin.DELETE("/products/:id", catalogH.DeleteProduct)
	admin.PUT("/products/:id/stock", catalogH.SetStock)
	admin.POST("/products/:id/stock/adjust", catalogH.AdjustStock)
	admin.POST("/categories", catalogH.CreateCategory)

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("http request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Int("status", c.Writer.Status()),
			)
		}
	}
}
