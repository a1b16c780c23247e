// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/z5labs/minihttpd/logging"
	"github.com/z5labs/minihttpd/probe"
)

func newProbeCommand() *cobra.Command {
	var (
		retries  int
		expect   int
		wait     time.Duration
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "probe URL",
		Short: "GET a URL, retrying until the expected status is returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			log, stop, err := logging.New(
				logging.Config{DefaultLevel: logLevel},
				logging.Name("minihttpd-probe"),
				logging.Writer(cmd.ErrOrStderr()),
			)
			if err != nil {
				return err
			}
			defer func() {
				serr := stop(cmd.Context())
				if err == nil {
					err = serr
				}
			}()

			p := probe.New(
				probe.Retries(retries),
				probe.Backoff(wait, 10*wait),
				probe.Expect(expect),
				probe.Logger(log),
			)
			res, err := p.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", res.StatusCode, res.ContentType)
			return err
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&retries, "retries", 3, "retries after the first attempt")
	fs.IntVar(&expect, "expect", 200, "status code that counts as healthy")
	fs.DurationVar(&wait, "wait", 100*time.Millisecond, "minimum wait between attempts")
	fs.StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}
