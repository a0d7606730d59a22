package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type HttpServerParams struct {
	fx.In

	Config HttpConfig

	Handlers []*HttpHandler `group:"handlers"`
	Logger   *zap.Logger
}

type HttpServer struct {
	address  string
	server   *http.Server
	listener net.Listener
	log      *zap.Logger
}

func NewHttpServer(params HttpServerParams) *HttpServer {
	mux := http.NewServeMux()

	for _, handler := range params.Handlers {
		mux.Handle(handler.Name, handler.Handler)
	}

	var handler http.Handler = mux
	if params.Config.H2c {
		handler = h2c.NewHandler(mux, &http2.Server{})
	}

	address := fmt.Sprintf("%s:%d", params.Config.Host, params.Config.Port)

	return &HttpServer{
		address: address,
		server: &http.Server{
			Addr:    address,
			Handler: handler,
		},
		log: params.Logger.Named("http"),
	}
}

func NewLifecycleServer(params HttpServerParams, lc fx.Lifecycle) *HttpServer {
	server := NewHttpServer(params)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Listen(ctx); err != nil {
				return err
			}
			go server.Serve()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
	return server
}

// Listen binds the configured address. A failure to bind fails the
// application start.
func (s *HttpServer) Listen(ctx context.Context) error {
	cfg := net.ListenConfig{}

	listener, err := cfg.Listen(ctx, "tcp", s.address)
	if err != nil {
		s.log.Error("failed to listen", zap.Error(err))
		return err
	}

	s.listener = listener

	s.log.Info("listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *HttpServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *HttpServer) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("failed to serve", zap.Error(err))
		return err
	}

	return nil
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("failed to shutdown", zap.Error(err))
		return err
	}

	return nil
}
