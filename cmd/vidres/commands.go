package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/glebovdev/vidres/internal/api"
	"github.com/glebovdev/vidres/internal/cache"
	"github.com/glebovdev/vidres/internal/classify"
	"github.com/glebovdev/vidres/internal/config"
	"github.com/glebovdev/vidres/internal/metadata"
	"github.com/glebovdev/vidres/internal/metrics"
	"github.com/glebovdev/vidres/internal/player"
	"github.com/glebovdev/vidres/internal/proxy"
	"github.com/glebovdev/vidres/internal/service"
	"github.com/glebovdev/vidres/internal/sniff"
	"github.com/glebovdev/vidres/internal/video"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>...",
		Short: "Print the format tag of each URL",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, raw := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", classify.Classify(raw), raw)
			}
		},
	}
}

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <url>...",
		Short: "Resolve title, duration and thumbnail for each URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver(loadConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, meta := range resolver.ResolveAll(cmd.Context(), args) {
				fmt.Fprintf(out, "%s\n", args[i])
				fmt.Fprintf(out, "  format:    %s\n", classify.Classify(args[i]))
				fmt.Fprintf(out, "  title:     %s\n", meta.Title)
				if meta.Duration > 0 {
					fmt.Fprintf(out, "  duration:  %s\n", meta.Duration.Round(time.Second))
				}
				if meta.Width > 0 && meta.Height > 0 {
					fmt.Fprintf(out, "  size:      %dx%d\n", meta.Width, meta.Height)
				}
				if meta.Thumbnail != "" {
					fmt.Fprintf(out, "  thumbnail: %s\n", meta.Thumbnail)
				}
			}
			return nil
		},
	}
}

func newSniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <page-url>",
		Short: "Find the first media reference embedded in a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			sniffer := sniff.NewSniffer(cfg.SniffTimeout, cfg.UserAgent, cfg.SniffRPS)

			res, err := sniffer.Sniff(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", res.Format, res.URL)
			return nil
		},
	}
}

func newEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed <url>",
		Short: "Print the embed markup for a Bilibili or YouTube URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embed, err := player.EmbedDocument(video.VideoRef{URL: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), embed.HTML)
			return nil
		},
	}
}

func newPlayCmd() *cobra.Command {
	var (
		title       string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "play <url>",
		Short: "Find a playable source for a URL, following the fallback chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx := cmd.Context()

			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			playlist := service.NewPlaylistService(resolver)
			ref, err := playlist.Add(args[0], title)
			if err != nil {
				return err
			}

			m := metrics.New()
			if metricsAddr != "" {
				stopMetrics := serveMetrics(metricsAddr, m)
				defer stopMetrics()
			}

			selector := player.NewSelector(
				player.NewHTTPCapability(cfg.UserAgent),
				player.WithSniffer(sniff.NewSniffer(cfg.SniffTimeout, cfg.UserAgent, cfg.SniffRPS)),
				player.WithProxyResolver(proxy.NewResolver(cfg.Origin, cfg.Proxies)),
				player.WithRecorder(m),
				player.WithRetryDelay(cfg.RetryDelay),
				player.WithLoadTimeout(cfg.LoadTimeout),
			)

			out := cmd.OutOrStdout()
			sess := selector.Begin(ctx, ref)
			for ev := range sess.Events() {
				switch ev.Type {
				case player.EventLoadStart:
					fmt.Fprintf(out, "[%d/%d] trying %s %s\n", ev.RetryCount, player.MaxRetries, ev.Strategy, ev.URL)
				case player.EventWarning:
					fmt.Fprintf(out, "  warning: %s: %v\n", ev.Message, ev.Err)
				case player.EventPlay:
					fmt.Fprintf(out, "playable: %s %s\n", ev.Strategy, ev.URL)
				}
			}

			playlist.Wait()
			if entry, ok := playlist.GetByID(ref.ID); ok {
				fmt.Fprintf(out, "title: %s\n", entry.DisplayTitle())
			}

			err = sess.Wait()
			var perr *player.PlaybackError
			if errors.As(err, &perr) {
				fmt.Fprintf(out, "hint: %s\n", perr.Remediation)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title to use instead of the resolved one")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.AppName, config.AppVersion)
			fmt.Fprintln(cmd.OutOrStdout(), config.AppDescription)
		},
	}
}

func newResolver(cfg *config.Config) (*metadata.Resolver, error) {
	metaCache, err := cache.New[video.Metadata](cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	opts := []metadata.Option{
		metadata.WithCache(metaCache),
		metadata.WithBatchLimit(cfg.BatchLimit),
		metadata.WithProbeTimeout(cfg.ProbeTimeout),
	}
	if cfg.ProbeEnabled {
		opts = append(opts, metadata.WithProber(metadata.NewFFProbe(cfg.ProbeTimeout)))
	}

	return metadata.NewResolver(api.NewBilibiliClient(cfg.BilibiliAPI, cfg.UserAgent), opts...), nil
}

func serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	log.Debug().Str("addr", addr).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
