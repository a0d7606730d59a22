package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lambda-feedback/sysproc/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type RpcHandlerParams struct {
	fx.In

	API    *ExecAPI
	Config config.Config
	Log    *zap.Logger
}

func NewRpcHandler(params RpcHandlerParams, lc fx.Lifecycle) (*RpcHandler, error) {
	h, err := newRpcHandler(params.API, params.Config.Auth, params.Log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(h.server.Stop))

	return h, nil
}

func newRpcHandler(api *ExecAPI, auth config.AuthConfig, log *zap.Logger) (*RpcHandler, error) {
	server := rpc.NewServer()

	if err := server.RegisterName("exec", api); err != nil {
		return nil, err
	}

	return &RpcHandler{
		server: server,
		auth:   auth,
		log:    log.Named("rpc"),
	}, nil
}

// RpcHandler serves the exec api as JSON-RPC over http.
type RpcHandler struct {
	server *rpc.Server
	auth   config.AuthConfig
	log    *zap.Logger
}

func (h *RpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	// Check for authorization
	if h.auth.Key != "" && r.Header.Get("api-key") != h.auth.Key {
		log.Debug("unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.server.ServeHTTP(w, r)
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
