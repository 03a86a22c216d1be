/*
 * Copyright (c) 2025 reportes-seo
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/logging"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/stubserver"
)

func newServeStubCmd(stderr io.Writer) *cobra.Command {
	var (
		addr          string
		logLevel      string
		omitHeaders   bool
		base64Failure bool
	)

	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Serve a canned GeoGrid Server API for local probe runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithOutput("geogrid-stub", stderr)
			logger.SetLevel(logLevel)

			srv := stubserver.New(stubserver.Options{
				OmitRenderHeaders: omitHeaders,
				Base64Failure:     base64Failure,
				Logger:            logger,
			})
			return srv.Run(cmd.Context(), addr)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&addr, "listen", getenv("STUB_ADDR", ":3000"), "listen address (STUB_ADDR)")
	fs.StringVar(&logLevel, "log-level", getenv("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.BoolVar(&omitHeaders, "omit-render-headers", false, "drop X-Render-Time, X-GeoRank and X-Grid-Points")
	fs.BoolVar(&base64Failure, "base64-failure", false, "answer the base64 render with success=false")
	return cmd
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
