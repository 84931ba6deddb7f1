package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/praxislabs/praxis/backend/internal/handler/auth"
	chatHandler "github.com/praxislabs/praxis/backend/internal/handler/chat"
	moduleHandler "github.com/praxislabs/praxis/backend/internal/handler/module"
	middlewarePkg "github.com/praxislabs/praxis/backend/internal/middleware"
	moduleModel "github.com/praxislabs/praxis/backend/internal/model/module"
	"github.com/praxislabs/praxis/backend/internal/service/ai"
	chatService "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. generator may be nil when the
// provider credentials are absent; the chat endpoint then serves fallback
// replies instead of failing.
func NewRouter(catalog moduleModel.Catalog, chatSvc *chatService.Service, generator chatHandler.Generator, resolver *ai.Resolver) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Praxis API"})
	})

	r.Route("/auth", authHandler.New(chatSvc).RegisterRoutes)
	r.Route("/modules", moduleHandler.New(catalog).RegisterRoutes)
	r.Route("/chat", chatHandler.New(chatSvc, generator, resolver).RegisterRoutes)

	return r
}
