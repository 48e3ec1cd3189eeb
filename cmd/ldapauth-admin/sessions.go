package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/bootstrap"
)

const (
	scanCount       = 100
	defaultBatchCap = 500
)

type listSessionsOptions struct {
	Limit int
}

type clearSessionsOptions struct {
	ID     string
	All    bool
	DryRun bool
	Yes    bool
}

type sessionDeleteStats struct {
	total    int
	deleted  int64
	failures int
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSessionsFlags(args)
	if err != nil {
		return err
	}
	return withRedis(cmdCtx, func(client redis.UniversalClient) error {
		return listSessions(cmdCtx.Ctx, client, cmdCtx.Config.Session.KeyPrefix, opts, cmdCtx.Out)
	})
}

func runClearSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSessionsFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes && !opts.DryRun {
		if err = confirm(cmdCtx.In, cmdCtx.Out, describeClear(opts)); err != nil {
			return err
		}
	}
	return withRedis(cmdCtx, func(client redis.UniversalClient) error {
		stats, clearErr := clearSessions(cmdCtx.Ctx, client, cmdCtx.Config.Session.KeyPrefix, opts, defaultBatchCap)
		if clearErr != nil {
			return clearErr
		}
		verb := "Deleted"
		if opts.DryRun {
			verb = "Would delete"
		}
		if err := writef(cmdCtx.Out, "%s %d of %d session(s)\n", verb, stats.deleted, stats.total); err != nil {
			return err
		}
		if stats.failures > 0 {
			return fmt.Errorf("%d delete batch(es) failed", stats.failures)
		}
		return nil
	})
}

// withRedis connects using the REDIS_ settings. Sessions only live in Redis when
// SESSION_BACKEND=redis; the in-memory backend has nothing to inspect from outside.
func withRedis(cmdCtx *commandContext, fn func(redis.UniversalClient) error) error {
	if cmdCtx.Config.Session.Backend != config.SessionBackendRedis {
		return fmt.Errorf("session backend is %q; these commands require SESSION_BACKEND=redis",
			cmdCtx.Config.Session.Backend)
	}
	client, err := bootstrap.ConnectRedis(cmdCtx.Ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close redis failed", "error", cerr)
		}
	}()
	return fn(client)
}

func listSessions(
	ctx context.Context,
	client redis.UniversalClient,
	prefix string,
	opts listSessionsOptions,
	w io.Writer,
) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "SESSION\tTTL\tFIELDS\n"); err != nil {
		return err
	}

	count := 0
	iter := client.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if opts.Limit > 0 && count >= opts.Limit {
			break
		}
		key := iter.Val()
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("ttl %s: %w", key, err)
		}
		fields, err := client.HKeys(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("hkeys %s: %w", key, err)
		}
		if err = writef(tw, "%s\t%s\t%s\n",
			strings.TrimPrefix(key, prefix), renderTTL(ttl), strings.Join(fields, ",")); err != nil {
			return err
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "%d session(s)\n", count)
}

func clearSessions(
	ctx context.Context,
	client redis.UniversalClient,
	prefix string,
	opts clearSessionsOptions,
	batchCap int,
) (sessionDeleteStats, error) {
	var stats sessionDeleteStats
	if opts.ID != "" {
		stats.total = 1
		if opts.DryRun {
			stats.deleted = 1
			return stats, nil
		}
		n, err := client.Del(ctx, prefix+opts.ID).Result()
		if err != nil {
			return stats, fmt.Errorf("delete session: %w", err)
		}
		stats.deleted = n
		return stats, nil
	}

	flush := func(batch []string) {
		if len(batch) == 0 {
			return
		}
		if opts.DryRun {
			stats.deleted += int64(len(batch))
			return
		}
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			stats.failures++
			return
		}
		stats.deleted += n
	}

	batch := make([]string, 0, batchCap)
	iter := client.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		stats.total++
		batch = append(batch, iter.Val())
		if len(batch) == batchCap {
			flush(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}
	flush(batch)
	return stats, nil
}

func renderTTL(d time.Duration) string {
	switch {
	case d == -1:
		return "none"
	case d < 0:
		return "expired"
	default:
		return d.Round(time.Second).String()
	}
}

func describeClear(opts clearSessionsOptions) string {
	if opts.ID != "" {
		return fmt.Sprintf("This will delete session %s.", opts.ID)
	}
	return "This will delete ALL session slots; every signed-in user without a valid cookie is logged out."
}

func confirm(in io.Reader, out io.Writer, message string) error {
	if err := writef(out, "%s Continue? [y/N]: ", message); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return nil
	default:
		return errors.New("aborted by user")
	}
}

func parseListSessionsFlags(args []string) (listSessionsOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listSessionsOptions
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum sessions to print (0 for all)")

	if err := fs.Parse(args); err != nil {
		return listSessionsOptions{}, err
	}
	if opts.Limit < 0 {
		return listSessionsOptions{}, errors.New("--limit must be >= 0")
	}
	return opts, nil
}

func parseClearSessionsFlags(args []string) (clearSessionsOptions, error) {
	fs := flag.NewFlagSet("clear-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearSessionsOptions
	fs.StringVar(&opts.ID, "id", "", "Session id to delete (required unless --all)")
	fs.BoolVar(&opts.All, "all", false, "Delete every session slot")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count matching sessions without deleting")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearSessionsOptions{}, err
	}
	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" && !opts.All {
		return clearSessionsOptions{}, errors.New("either --id or --all is required")
	}
	if opts.ID != "" && opts.All {
		return clearSessionsOptions{}, errors.New("--id and --all are mutually exclusive")
	}
	return opts, nil
}
