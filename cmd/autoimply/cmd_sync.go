package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	bqmirror "github.com/boorubot/autoimply/sources/bigquery"
	"github.com/boorubot/autoimply/sources/danbooru"
	sqlstore "github.com/boorubot/autoimply/store/sql"
)

func newSyncCmd(a *app) *cobra.Command {
	var skipTags, skipBURs bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local tag and request mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, _, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			if !cfg.Store.enabled() {
				return autoimply.ErrStoreNotConfigured
			}

			st, err := sqlstore.New(cfg.Store.storeConfig())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.InitSchema(ctx); err != nil {
				return err
			}

			if !skipTags && cfg.BigQuery.enabled() {
				mirror, err := bqmirror.New(ctx, bqmirror.Config{
					ProjectID: cfg.BigQuery.ProjectID,
					Table:     cfg.BigQuery.Table,
				}, st, a.log.Named("bigquery"))
				if err != nil {
					return err
				}
				defer mirror.Close()

				rows, err := mirror.SyncTags(ctx)
				if err != nil {
					return err
				}
				a.log.Info("tag mirror refreshed", zap.Int("rows", rows))
			}

			if !skipBURs {
				client := danbooru.New(cfg.Danbooru.clientConfig(), a.log.Named("danbooru"))

				since, err := st.LastBURUpdate(ctx)
				if err != nil {
					return err
				}
				records, err := client.ListBURs(ctx, since)
				if err != nil {
					return err
				}
				if err := st.UpsertBURs(ctx, records); err != nil {
					return err
				}
				a.log.Info("request mirror refreshed", zap.Int("rows", len(records)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipTags, "skip-tags", false, "skip the BigQuery tag sync")
	cmd.Flags().BoolVar(&skipBURs, "skip-burs", false, "skip the bulk update request sync")
	return cmd
}
