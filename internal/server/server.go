// Package server wires the HTTP surface over the catalog, list, and
// recommendation services.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aniverse/backend/internal/auth"
	"github.com/aniverse/backend/internal/chat"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/recommend"
	"github.com/aniverse/backend/internal/store"
)

// Server holds the handler dependencies. All of them are safe for
// concurrent use; the server itself carries no mutable state.
type Server struct {
	log        *logger.Logger
	catalog    store.CatalogStore
	lists      store.ListStore
	users      store.UserStore
	authSvc    *auth.Service
	engine     *recommend.Engine
	dispatcher *chat.Dispatcher
}

func New(log *logger.Logger, catalog store.CatalogStore, lists store.ListStore, users store.UserStore,
	authSvc *auth.Service, engine *recommend.Engine, dispatcher *chat.Dispatcher) *Server {
	return &Server{
		log:        log.With("component", "server"),
		catalog:    catalog,
		lists:      lists,
		users:      users,
		authSvc:    authSvc,
		engine:     engine,
		dispatcher: dispatcher,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", s.handleHealthcheck)

	api := router.Group("/api")
	{
		api.POST("/auth/register", s.handleRegister)
		api.POST("/auth/login", s.handleLogin)

		api.GET("/search", s.handleSearch)
		api.GET("/anime", s.handleBrowseAnime)
		api.GET("/anime/:id", s.handleGetEntry)
		api.GET("/anime/:id/similar", OptionalAuth(s.authSvc), s.handleSimilar)
		api.GET("/manga", s.handleBrowseManga)
		api.GET("/manga/:id", s.handleGetEntry)
		api.GET("/manga/:id/similar", OptionalAuth(s.authSvc), s.handleSimilar)

		api.GET("/recommendations/quick", OptionalAuth(s.authSvc), s.handleQuickRecommendations)
	}

	protected := api.Group("")
	protected.Use(RequireAuth(s.authSvc))
	{
		protected.GET("/auth/me", s.handleMe)
		protected.GET("/recommendations", s.handleRecommendations)
		protected.POST("/chat", s.handleChat)

		protected.POST("/lists/add", s.handleListAdd)
		protected.GET("/lists", s.handleListGet)
		protected.GET("/lists/stats", s.handleListStats)
		protected.PATCH("/lists/:id", s.handleListPatch)
		protected.DELETE("/lists/:id", s.handleListDelete)
	}

	return router
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}
