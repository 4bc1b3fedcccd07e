package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ipni/go-fetchcache/fetcher"
	"github.com/ipni/go-fetchcache/httpsource"
	"github.com/ipni/go-fetchcache/store"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "GET a JSON resource through the cache",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "query parameter as name=value, may be repeated",
			},
			&cli.IntFlag{
				Name:  "repeat",
				Usage: "number of rounds of reads",
				Value: 2,
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "concurrent reads per round",
				Value:   4,
			},
			&cli.IntFlag{
				Name:  "max-size",
				Usage: "maximum number of cached responses",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("FETCHCACHE_MAX_SIZE"),
				),
				Value: 100,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "time-to-live of cached responses",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("FETCHCACHE_TTL"),
				),
				Value: 5 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "skip-cache",
				Usage: "bypass the cache, still sharing concurrent reads",
			},
			&cli.IntFlag{
				Name:  "retry",
				Usage: "number of times to retry a failed request",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("FETCHCACHE_RETRY"),
				),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "time limit for each request",
				Value: 30 * time.Second,
			},
		},
		Action: getAction,
	}
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	if err := logging.SetLogLevelRegex("fetchcache/.*", cmd.String("log-level")); err != nil {
		return err
	}

	if cmd.Args().Len() != 1 {
		return errors.New("exactly one URL is required")
	}
	base, path, params, err := splitURL(cmd.Args().First(), cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	src, err := httpsource.New(base,
		httpsource.WithRetry(cmd.Int("retry"), 0, 0),
		httpsource.WithTimeout(cmd.Duration("timeout")))
	if err != nil {
		return err
	}
	s, err := store.New[json.RawMessage](store.WithMaxSize(cmd.Int("max-size")))
	if err != nil {
		return err
	}
	f, err := fetcher.New(s, fetcher.WithDefaultTTL(cmd.Duration("ttl")))
	if err != nil {
		return err
	}

	var readOpts []fetcher.ReadOption
	if cmd.Bool("skip-cache") {
		readOpts = append(readOpts, fetcher.SkipCache())
	}

	key := src.Key(path, params)
	op := src.Operation(path, params)
	body, err := readRounds(ctx, f, key, op, cmd.Int("repeat"), cmd.Int("concurrency"), readOpts)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if err = printBody(out, body); err != nil {
		return err
	}
	printStats(out, key, s.Stats())
	return nil
}

// readRounds does rounds of concurrent reads of key, and returns the body from
// the first read.
func readRounds(ctx context.Context, f *fetcher.Fetcher[json.RawMessage], key string, op fetcher.Operation[json.RawMessage], rounds, concurrency int, readOpts []fetcher.ReadOption) (json.RawMessage, error) {
	if rounds < 1 || concurrency < 1 {
		return nil, errors.New("repeat and concurrency must be at least 1")
	}

	var first json.RawMessage
	for round := 0; round < rounds; round++ {
		bodies := make([]json.RawMessage, concurrency)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < concurrency; i++ {
			g.Go(func() error {
				body, err := f.Read(gctx, key, op, readOpts...)
				bodies[i] = body
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if round == 0 {
			first = bodies[0]
		}
	}
	return first, nil
}

// splitURL separates rawURL into its base, path, and query parameters, adding
// any name=value pairs from extra.
func splitURL(rawURL string, extra []string) (string, string, map[string]any, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", nil, err
	}
	if u.Host == "" {
		return "", "", nil, fmt.Errorf("url has no host: %s", rawURL)
	}

	params := make(map[string]any)
	for name, vals := range u.Query() {
		if len(vals) != 0 {
			params[name] = vals[len(vals)-1]
		}
	}
	for _, p := range extra {
		name, val, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return "", "", nil, fmt.Errorf("param must be name=value: %s", p)
		}
		params[name] = val
	}

	base := u.Scheme + "://" + u.Host
	return base, u.Path, params, nil
}

func printBody(w io.Writer, body json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func printStats(w io.Writer, key string, st store.Stats) {
	fmt.Fprintln(w, "Key:     ", key)
	fmt.Fprintf(w, "Entries:  %d/%d\n", st.Size, st.MaxSize)
	fmt.Fprintf(w, "Hits:     %d\n", st.Hits)
	fmt.Fprintf(w, "Misses:   %d\n", st.Misses)
	fmt.Fprintf(w, "Hit rate: %.1f%%\n", st.HitRate*100)
}
