package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livepeer/transcode-engine/control"
	"github.com/livepeer/transcode-engine/httpapi"
	"github.com/livepeer/transcode-engine/log"
	"github.com/livepeer/transcode-engine/metrics"
	"github.com/livepeer/transcode-engine/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and its operator HTTP surface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.LogNoRequestID("transcodectl serve starting, version=" + versionString())

	pipelineControl := control.NewPipelineControl(&control.DemoBuilder{})
	policy := scheduler.NewStaticTopPolicy()
	sched := scheduler.NewScheduler(pipelineControl, policy)
	pipelineControl.SetScheduler(sched)

	if cli.MetricsAddr != "" {
		go func() {
			if err := metrics.ListenAndServe(cli.MetricsAddr); err != nil {
				log.LogError("", "metrics server stopped", err)
			}
		}()
	}

	server := httpapi.NewServer(sched, policy)
	httpServer := &http.Server{Addr: cli.ListenAddr, Handler: server.Router()}

	go func() {
		log.LogNoRequestID("operator HTTP surface listening on " + cli.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError("", "operator HTTP surface stopped", err)
		}
	}()

	waitForSignal()
	log.LogNoRequestID("transcodectl serve shutting down")
	return httpServer.Shutdown(context.Background())
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
