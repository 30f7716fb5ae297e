package customHttpClient

import (
	"net/http"

	"github.com/akolanti/docpipeline/internal/config"
)

var pooledTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// PooledClient is shared by the embedding providers so batch stage calls
// reuse connections instead of paying the handshake per batch.
func PooledClient() *http.Client {
	return &http.Client{Transport: pooledTransport}
}
