package http

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/liveview/api/http/handler"
	"bitbucket.org/novatechnologies/liveview/infra"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

type Server struct {
	srv http.Server
	log logger.Logger
}

// NewRouter routes the read API and, when ws is not nil, the WebSocket
// endpoint.
func NewRouter(views *handler.ViewsHandler, ws http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/views", views.GetViews).Methods(http.MethodGet)
	api.HandleFunc("/views/{"+handler.RegionVar+"}", views.GetRegion).Methods(http.MethodGet)
	api.HandleFunc("/chart", views.GetChart).Methods(http.MethodGet)

	if ws != nil {
		router.Handle("/ws", ws).Methods(http.MethodGet)
	}

	return router
}

func NewServer(router http.Handler, conf infra.HttpConfig) *Server {
	return &Server{
		srv: http.Server{
			Addr:    fmt.Sprintf(":%d", conf.Port),
			Handler: router,
		},
		log: logger.DefaultLogger,
	}
}

func (s *Server) WithLogger(lg logger.Logger) *Server {
	s.log = lg
	return s
}

// Start serves until Stop is called. Request contexts derive from ctx.
func (s *Server) Start(ctx context.Context) error {
	s.srv.BaseContext = func(listener net.Listener) context.Context {
		return ctx
	}

	s.log.WithField("addr", s.srv.Addr).Infof("[*] Http server is started")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server")
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}
	s.log.Infof("Http server is stopped")

	return nil
}
