package router

import (
	"net/http"

	"itemstore/config"
	handler "itemstore/internal/item"
	"itemstore/internal/item/service"
	"itemstore/middleware"
	"itemstore/socket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Setup wires the item routes, the change feed and the middleware chain.
func Setup(svc *service.ItemService, hub *socket.Hub, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	hooks := []handler.Hook{handler.LogDispatch}
	if hub != nil {
		hooks = append(hooks, hub.Observe)
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			socket.ServeWs(hub, w, r)
		})
	}

	itemHandler := handler.NewItemHandler(svc, cfg.MaxBodyBytes, hooks...)
	itemHandler.RegisterRoutes(r)
	r.Get("/health", itemHandler.Health)

	r.NotFound(itemHandler.RouteNotFound)
	r.MethodNotAllowed(itemHandler.RouteNotFound)

	return r
}
