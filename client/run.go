/*
 * Copyright (c) 2025 reportes-seo
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/config"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/logging"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/metrics"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/probe"
)

const pushTimeout = 10 * time.Second

type probeFlags struct {
	baseURL     string
	requestFile string
	outputFile  string
	logLevel    string
	pushgateway string
	jobName     string
	timeout     time.Duration
	extended    bool
}

func (f *probeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.baseURL, "base-url", config.DefaultBaseURL, "GeoGrid Server base address (GEOGRID_BASE_URL)")
	fs.StringVar(&f.requestFile, "request", config.DefaultRequestFile, "render request fixture (GEOGRID_REQUEST_FILE)")
	fs.StringVar(&f.outputFile, "output", config.DefaultOutputFile, "file receiving the rendered image (GEOGRID_OUTPUT_FILE)")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error (LOG_LEVEL)")
	fs.StringVar(&f.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL (GEOGRID_PUSHGATEWAY_URL)")
	fs.StringVar(&f.jobName, "job", config.DefaultJobName, "Pushgateway job name (GEOGRID_JOB_NAME)")
	fs.DurationVar(&f.timeout, "timeout", 0, "per request timeout, 0 keeps the transport default (GEOGRID_TIMEOUT)")
	fs.BoolVar(&f.extended, "extended", false, "also check /health/ready and /health/live (GEOGRID_EXTENDED)")
}

// resolve starts from the environment and applies only the flags the user set.
func (f *probeFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}

	fs := cmd.Flags()
	if fs.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if fs.Changed("request") {
		cfg.RequestFile = f.requestFile
	}
	if fs.Changed("output") {
		cfg.OutputFile = f.outputFile
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("pushgateway") {
		cfg.PushgatewayURL = f.pushgateway
	}
	if fs.Changed("job") {
		cfg.JobName = f.jobName
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("extended") {
		cfg.Extended = f.extended
	}

	return cfg, cfg.Validate()
}

func runProbe(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	logger := logging.NewLoggerWithOutput(probe.ServiceName, stderr)
	logger.SetLevel(cfg.LogLevel)

	client, err := probe.NewClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return err
	}

	mc := metrics.NewMetricsCollector()
	p := probe.New(client, probe.Options{
		Out:         stdout,
		RequestFile: cfg.RequestFile,
		OutputFile:  cfg.OutputFile,
		Extended:    cfg.Extended,
		Logger:      logger,
		Metrics:     mc,
	})

	report := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		instance, _ := os.Hostname()
		log := logger.WithCorrelationID(report.CorrelationID).WithField("pushgateway", cfg.PushgatewayURL)
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := mc.Push(pushCtx, cfg.PushgatewayURL, cfg.JobName, instance); err != nil {
			log.Error("metrics push failed", err)
		} else {
			log.Debug("metrics pushed")
		}
	}

	if !report.OK() {
		return errProbeFailed
	}
	return nil
}
