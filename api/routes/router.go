package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mealkart/cartsync-backend/api/controllers"
	cartctl "github.com/mealkart/cartsync-backend/api/controllers/cart"
	"github.com/mealkart/cartsync-backend/api/middleware"
	"github.com/mealkart/cartsync-backend/internal/cartsync"
	"github.com/mealkart/cartsync-backend/internal/engine"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/pkg/config"
	"github.com/mealkart/cartsync-backend/pkg/logger"
)

// Deps carries everything the router mounts.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *engine.Registry
	Syncer   *cartsync.Syncer
	Remote   *remotecart.Client
	Health   map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

// New assembles the HTTP surface: health and metrics outside the session
// scope, the cart API inside it.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", controllers.Health(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	h := cartctl.NewHandlers(deps.Registry, deps.Syncer, deps.Remote, deps.Logger)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.Session(deps.Config.JWT, deps.Logger))

		r.Get("/", h.View)
		r.Get("/count", h.Count)
		r.Post("/items", h.AddItem)

		r.Route("/items/{dishID}", func(r chi.Router) {
			r.Put("/", h.SetQuantity)
			r.Post("/increment", h.Increment)
			r.Post("/decrement", h.Decrement)
			r.Post("/remove", h.RequestRemoval)
			r.Post("/remove/cancel", h.CancelRemoval)
			r.Delete("/", h.ConfirmRemoval)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Post("/items/{dishID}", h.ToggleItem)
			r.Post("/groups/{restaurantID}", h.ToggleGroup)
			r.Post("/all", h.ToggleAll)
		})

		r.Post("/checkout", h.Checkout)
		r.Post("/sync", h.Sync)
	})

	return r
}
