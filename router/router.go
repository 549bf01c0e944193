package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/controllers"
	"github.com/yeremiapane/table-points/metrics"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/models"
)

// Options carries the optional HTTP layers. Nil fields are skipped.
type Options struct {
	Production   bool
	CORSOrigin   string
	Metrics      *metrics.Metrics
	Cache        *middlewares.ResponseCache
	RateLimiter  *middlewares.RateLimiter
	LoginLimiter *middlewares.RateLimiter
}

func SetupRouter(d controllers.Deps, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders(opts.Production))
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	cache := func(c *gin.Context) { c.Next() }
	if opts.Cache != nil {
		cache = opts.Cache.Middleware()
	}
	loginLimit := func(c *gin.Context) { c.Next() }
	if opts.LoginLimiter != nil {
		loginLimit = opts.LoginLimiter.RateLimit()
	}

	// Inisialisasi controller
	healthCtrl := controllers.NewHealthController(d)
	authCtrl := controllers.NewAuthController(d)
	tableCtrl := controllers.NewTableController(d)
	pointsCtrl := controllers.NewPointsController(d)

	auth := middlewares.AuthMiddleware(d.DB, d.Tokens, d.Blacklist)
	staff := middlewares.RequireRole(models.RoleCashier, models.RoleAdmin)
	admin := middlewares.RequireRole(models.RoleAdmin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", healthCtrl.Ping)
	r.GET("/healthz", healthCtrl.Healthz)

	if d.Hub != nil {
		liveCtrl := controllers.NewLiveController(d)
		r.GET("/ws/leaderboard", liveCtrl.Leaderboard)
	}

	api := r.Group("/api")
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.RateLimit())
	}

	// AUTH
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", loginLimit, authCtrl.Login)
		authGroup.GET("/me", auth, authCtrl.Me)
		authGroup.POST("/register", auth, admin, authCtrl.Register)
		authGroup.PUT("/updatedetails", auth, authCtrl.UpdateDetails)
		authGroup.PUT("/updatepassword", auth, authCtrl.UpdatePassword)
		authGroup.POST("/logout", auth, authCtrl.Logout)
	}

	// TABLES
	tables := api.Group("/tables")
	{
		tables.GET("", tableCtrl.GetTables)
		tables.GET("/leaderboard", cache, tableCtrl.GetLeaderboard)
		tables.GET("/qr/:qrCode", tableCtrl.GetTableByQR)
		tables.GET("/qr/:qrCode/image", tableCtrl.GetQRImage)
		tables.GET("/:id", tableCtrl.GetTable)
		tables.PUT("/:id/name", tableCtrl.UpdateTableName)

		tables.GET("/stats", auth, staff, cache, tableCtrl.GetTableStats)
		tables.GET("/print-sheet", auth, staff, tableCtrl.GetQRSheet)
		tables.POST("", auth, staff, tableCtrl.CreateTable)
		tables.PUT("/:id", auth, staff, tableCtrl.UpdateTable)
		tables.DELETE("/:id", auth, admin, tableCtrl.DeleteTable)
		tables.POST("/reset-points", auth, admin, tableCtrl.ResetAllPoints)
	}

	// POINTS
	points := api.Group("/points")
	{
		points.GET("/history/:tableId", pointsCtrl.GetTableHistory)

		points.POST("/add", auth, staff, pointsCtrl.AddPoints)
		points.POST("/redeem", auth, staff, pointsCtrl.RedeemPoints)
		points.GET("/transactions", auth, staff, pointsCtrl.GetTransactions)
		points.GET("/activity/:userId", auth, pointsCtrl.GetUserActivity)
		points.GET("/stats/daily", auth, staff, pointsCtrl.GetDailyStats)
		points.DELETE("/transactions/:id", auth, admin, pointsCtrl.DeleteTransaction)
		points.POST("/reconcile", auth, admin, pointsCtrl.Reconcile)
	}

	return r
}
