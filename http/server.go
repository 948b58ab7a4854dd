package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"gallery/entity"
)

type BookingService interface {
	BookTickets(ctx context.Context, userID, exhibitionID string, quantity int) (entity.Ticket, error)
	CancelTicket(ctx context.Context, actor entity.Actor, ticketID string) error
	AdjustTicketQuantity(ctx context.Context, actor entity.Actor, ticketID string, quantity int) (entity.Ticket, error)
	Ticket(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error)
	UserTickets(ctx context.Context, actor entity.Actor, userID string) ([]entity.Ticket, error)

	ExhibitionInventory(ctx context.Context, exhibitionID string) (entity.Inventory, error)
	SetExhibitionCapacity(ctx context.Context, exhibitionID string, newTotal int) error
	CreateExhibition(ctx context.Context, newExhibition entity.NewExhibition) (entity.Exhibition, error)
	Exhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error)
	ListExhibitions(ctx context.Context) ([]entity.Exhibition, error)
	DeleteExhibition(ctx context.Context, exhibitionID string) error
}

type Server struct {
	addr            string
	e               *echo.Echo
	bookings        BookingService
	conflictRetries uint64
}

// NewServer creates the HTTP API. Operations failing with entity.ErrConflict
// are retried up to conflictRetries times before 503 is returned.
func NewServer(
	addr string,
	bookings BookingService,
	jwtSecret string,
	conflictRetries uint64,
) *Server {
	if bookings == nil {
		panic("missing bookings")
	}
	if jwtSecret == "" {
		panic("missing jwtSecret")
	}

	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("gallery"))

	server := &Server{
		addr:            addr,
		e:               e,
		bookings:        bookings,
		conflictRetries: conflictRetries,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("", JWTAuth([]byte(jwtSecret)))

	api.GET("/exhibitions", server.GetExhibitions)
	api.GET("/exhibitions/:id", server.GetExhibition)
	api.GET("/exhibitions/:id/inventory", server.GetExhibitionInventory)
	api.POST("/exhibitions", server.PostExhibitions, RequireAdmin)
	api.DELETE("/exhibitions/:id", server.DeleteExhibition, RequireAdmin)
	api.PUT("/exhibitions/:id/capacity", server.PutExhibitionCapacity, RequireAdmin)

	api.POST("/tickets", server.PostTickets)
	api.GET("/tickets", server.GetTickets)
	api.GET("/tickets/:id", server.GetTicket)
	api.DELETE("/tickets/:id", server.DeleteTicket)
	api.PUT("/tickets/:id/quantity", server.PutTicketQuantity, RequireAdmin)

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.Background())
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
