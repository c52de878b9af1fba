// Package httpapi is the REST surface: routing, payload binding, error
// mapping and request logging. Business rules live in the domain packages.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"libraryhub/internal/auth"
	"libraryhub/internal/catalog"
	"libraryhub/internal/feedback"
	"libraryhub/internal/lifecycle"
	"libraryhub/internal/user"
	"libraryhub/internal/websocket"
)

// Announcer delivers a librarian's message to announcement subscribers and
// reports how many received it.
type Announcer interface {
	Broadcast(from, message string) int
}

type Deps struct {
	Users     *user.Repo
	Catalog   *catalog.Repo
	Feedback  *feedback.Repo
	Engine    *lifecycle.Engine
	Hub       *websocket.Hub
	Announcer Announcer

	Secret      []byte
	TokenTTL    time.Duration
	FrontendURL string
	Log         *slog.Logger
}

type Server struct {
	users     *user.Repo
	catalog   *catalog.Repo
	feedback  *feedback.Repo
	engine    *lifecycle.Engine
	announcer Announcer

	secret   []byte
	tokenTTL time.Duration
	log      *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	s := &Server{
		users:     d.Users,
		catalog:   d.Catalog,
		feedback:  d.Feedback,
		engine:    d.Engine,
		announcer: d.Announcer,
		secret:    d.Secret,
		tokenTTL:  d.TokenTTL,
		log:       d.Log,
	}
	gate := auth.NewGate(d.Secret, d.Users)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log), corsFor(d.FrontendURL))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	if d.Hub != nil {
		r.GET("/ws", gate.RequireQueryToken(auth.CapBoth), websocket.HandleWebSocket(d.Hub))
	}

	api := r.Group("/api")

	// PUBLIC
	api.POST("/login", s.login)
	api.POST("/user", s.register)
	api.GET("/sections", s.listSections)
	api.GET("/section/:sectionSlug", s.getSection)
	api.GET("/books", s.listBooks)
	api.GET("/book/:bookSlug", s.getBook)
	api.POST("/search", s.search)

	common := api.Group("/common", gate.Require(auth.CapBoth))
	common.GET("", s.readSelf)
	common.PUT("", s.updateSelf)
	common.DELETE("", s.deleteSelf)
	common.GET("/stats", s.stats)

	lib := api.Group("/librarian", gate.Require(auth.CapLibrarian))
	lib.POST("/section", s.createSection)
	lib.PUT("/section/:sectionSlug", s.updateSection)
	lib.DELETE("/section/:sectionSlug", s.deleteSection)
	lib.POST("/book/:sectionSlug", s.createBook)
	lib.PUT("/book/:bookSlug", s.updateBook)
	lib.DELETE("/book/:bookSlug", s.deleteBook)
	lib.GET("/requests", s.allRequests)
	lib.PUT("/request/:requestSlug", s.decideRequest)
	lib.PUT("/issued-book/:issuedBookSlug", s.librarianReturn)
	lib.POST("/announce", s.announce)

	usr := api.Group("/user", gate.Require(auth.CapUser))
	usr.POST("/request/:bookSlug", s.submitRequest)
	usr.DELETE("/request/:requestSlug", s.withdrawRequest)
	usr.GET("/my-books", s.myBooks)
	usr.PUT("/issued-book/:issuedBookSlug", s.returnBook)
	usr.GET("/feedbacks", s.myFeedbacks)
	usr.POST("/feedback/:bookSlug", s.createFeedback)
	usr.PUT("/feedback/:feedbackSlug", s.updateFeedback)

	return r
}

func corsFor(origin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{origin}
	}
	return cors.New(cfg)
}
