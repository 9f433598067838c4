package metrics

import (
	"fmt"
	"net/http"

	"github.com/livepeer/transcode-engine/config"
	"github.com/livepeer/transcode-engine/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe starts a standalone Prometheus metrics server, used when
// cmd/transcodectl is configured with a metrics address distinct from its
// main chi router.
func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.LogNoRequestID(
		fmt.Sprintf("Starting Prometheus metrics, version=%s host=%s", config.Version, addr),
	)
	return http.ListenAndServe(addr, mux)
}
