/*
 * Copyright (c) 2025 reportes-seo
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */
/*
This file wires the geogrid-probe command line. Running it without a subcommand
walks the GeoGrid Server API (root, health, presets, render, render/base64),
prints every response and saves the rendered image.
Use serve-stub to start a canned GeoGrid server for local runs.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/config"
)

// errProbeFailed is returned when the run finished with a failed step.
// The report already printed the error, so main only sets the exit code.
var errProbeFailed = errors.New("probe failed")

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &probeFlags{}

	root := &cobra.Command{
		Use:   "geogrid-probe",
		Short: "Exercise a GeoGrid Server API end to end",
		Long: `geogrid-probe calls the GeoGrid Server endpoints in a fixed order:
GET /, GET /health, GET /api/preview/presets, POST /api/render and
POST /api/render/base64. The first failure stops the run and the
process exits with status 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			return runProbe(cmd.Context(), cfg, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags.register(root)

	root.AddCommand(newServeStubCmd(stderr))
	return root
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("Warning: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()
	if err != nil {
		if !errors.Is(err, errProbeFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
