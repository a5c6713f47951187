package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/littlewalk/go-walk/models"
	"github.com/littlewalk/go-walk/services"
)

type Options struct {
	Coordinator     *services.Coordinator
	Listing         *services.ListingService
	Catalog         *services.CatalogService
	Tracking        *services.TrackingService
	MetricService   models.MetricService
	Logger          models.Logger
	LocationLimiter *WalkerLimiter
	// Empty enables the debug identity header.
	JwtSecret string
}

type server struct {
	Options
}

func NewRouter(opts Options) http.Handler {
	s := &server{opts}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(opts.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate(opts.JwtSecret))

		r.Route("/walk-requests", func(wr chi.Router) {
			wr.Post("/", s.createWalkRequest)
			wr.Get("/nearby", s.nearbyWalkRequests)
			wr.Get("/mine", s.myWalkRequests)
			wr.Route("/{id}", func(ir chi.Router) {
				ir.Get("/", s.getWalkRequest)
				ir.Post("/claim", s.claim)
				ir.Delete("/claim", s.resign)
				ir.Post("/bids", s.joinBids)
				ir.Delete("/bids", s.withdrawBid)
				ir.Post("/assign", s.assign)
				ir.Post("/dismiss", s.dismiss)
				ir.Post("/cancel", s.cancel)
				ir.Post("/start", s.startWalk)
				ir.Post("/finish", s.finishWalk)
				ir.Post("/locations", s.recordLocation)
				ir.Get("/locations", s.track)
			})
		})

		r.Route("/breeds", func(br chi.Router) {
			br.Post("/", s.createBreed)
			br.Get("/", s.queryBreeds)
			br.Delete("/{id}", s.deleteBreed)
		})

		r.Route("/dogs", func(dr chi.Router) {
			dr.Post("/", s.createDog)
			dr.Get("/mine", s.myDogs)
			dr.Patch("/{id}", s.updateDog)
			dr.Put("/{id}/portrait", s.updateDogPortrait)
			dr.Delete("/{id}", s.deleteDog)
		})
	})

	return r
}
