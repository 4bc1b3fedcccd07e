// Command fetchcache reads a JSON resource several times through a response
// cache and reports how many reads were served from the cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ipni/go-fetchcache/apierror"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorText(err))
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "fetchcache",
		Usage: "Read JSON resources through an in-memory response cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level for cache components (debug, info, warn, error)",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("FETCHCACHE_LOG_LEVEL"),
				),
				Value: "error",
			},
		},
		Commands: []*cli.Command{
			getCommand(),
		},
	}
}

// errorText includes the response status when err is a transport failure.
func errorText(err error) string {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr.Text()
	}
	return err.Error()
}
