package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/runner"
	"github.com/boorubot/autoimply/sources"
	"github.com/boorubot/autoimply/sources/danbooru"
	"github.com/boorubot/autoimply/store"
	sqlstore "github.com/boorubot/autoimply/store/sql"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		only    []string
		post    bool
		grep    string
		report  bool
		maxLine int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Derive implications and file bulk update requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, cleanup, err := a.buildRunner(ctx, runOptions{
				post:           post,
				grep:           grep,
				maxLinesPerBUR: maxLine,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := r.Run(ctx, only)
			if err != nil {
				return err
			}

			a.log.Info("run finished", zap.String("summary", rep.String()))
			if report {
				fmt.Println(rep.Dtext())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "series", nil, "restrict the run to the named series")
	cmd.Flags().BoolVar(&post, "post", false, "actually file requests, even for series with autopost disabled")
	cmd.Flags().StringVar(&grep, "grep", "", "only consider tags containing this substring")
	cmd.Flags().BoolVar(&report, "report", false, "print the dtext run report")
	cmd.Flags().IntVar(&maxLine, "max-lines-per-bur", autoimply.DefaultMaxLinesPerBUR, "script lines per request")
	return cmd
}

type runOptions struct {
	post           bool
	grep           string
	maxLinesPerBUR int
}

// buildRunner assembles the runner from the config file: Danbooru client
// as source and submitter, optional SQL mirror, resilient wrapper on the
// read side.
func (a *app) buildRunner(ctx context.Context, opts runOptions) (*runner.Runner, func(), error) {
	cfg, registry, err := loadConfig(a.configPath)
	if err != nil {
		return nil, nil, err
	}

	client := danbooru.New(cfg.Danbooru.clientConfig(), a.log.Named("danbooru"))

	var st store.Store
	cleanup := func() {}
	if cfg.Store.enabled() {
		sqlSt, err := sqlstore.New(cfg.Store.storeConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := sqlSt.InitSchema(ctx); err != nil {
			sqlSt.Close()
			return nil, nil, err
		}
		st = sqlSt
		cleanup = func() { sqlSt.Close() }
		client.SetTagResolver(sqlSt)
	}

	r, err := runner.New(runner.Options{
		Registry:       registry,
		Source:         sources.WrapWithResilience(client, a.log.Named("source")),
		Submitter:      client,
		Store:          st,
		Logger:         a.log,
		MaxLinesPerBUR: opts.maxLinesPerBUR,
		ForcePost:      opts.post,
		Grep:           opts.grep,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return r, cleanup, nil
}
