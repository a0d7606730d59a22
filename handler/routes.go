package handler

import (
	"net/http"

	"github.com/lambda-feedback/sysproc/internal/metrics"
	"github.com/lambda-feedback/sysproc/internal/server"
)

func NewRpcRoute(handler *RpcHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/rpc", handler)
}

func NewMetricsRoute(collector *metrics.Prometheus) server.HttpHandlerResult {
	return server.AsHttpHandler("GET /metrics", collector.Handler())
}

func NewHealthRoute() server.HttpHandlerResult {
	return server.AsHttpHandler("/health", http.HandlerFunc(HealthHandler))
}
