package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/config"
	"github.com/i474232898/climategpt-servers/internal/llm"
	"github.com/i474232898/climategpt-servers/internal/logging"
	"github.com/i474232898/climategpt-servers/internal/router"
)

// client is what every subcommand shares once the root has loaded config.
type client struct {
	cfg    *config.ClientConfig
	log    *zap.Logger
	router *router.Router
}

func newRootCmd() *cobra.Command {
	var (
		c            client
		registryPath string
		rowLimit     int
	)

	root := &cobra.Command{
		Use:           "climate",
		Short:         "Query the ClimateGPT data servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if registryPath != "" {
				cfg.RegistryPath = registryPath
			}
			if cmd.Flags().Changed("rows") {
				cfg.RowLimit = rowLimit
			}

			log, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			reg, err := router.LoadRegistry(cfg.RegistryPath)
			if err != nil {
				return err
			}

			c.cfg, c.log = cfg, log
			c.router = router.New(reg, llm.New(cfg.LLM, log), &http.Client{}, router.Options{
				RequestTimeout: cfg.RequestTimeout,
				Temperature:    cfg.LLM.Temperature,
				MaxTokens:      cfg.LLM.MaxTokens,
			}, log)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&registryPath, "registry", "", "server registry file (YAML or JSON)")
	root.PersistentFlags().IntVar(&rowLimit, "rows", 0, "maximum table rows to print")

	root.AddCommand(
		newAskCmd(&c),
		newServersCmd(&c),
		newStatusCmd(&c),
		newStatsCmd(&c),
		newPurgeCmd(&c),
	)
	return root
}

func newAskCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question; without arguments, read questions from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				renderReply(out, c.router.Process(ctx, strings.Join(args, " ")), c.cfg.RowLimit)
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render("ClimateGPT"), mutedStyle.Render("(type 'exit' to quit)"))
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !sc.Scan() {
					return sc.Err()
				}
				q := strings.TrimSpace(sc.Text())
				switch strings.ToLower(q) {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				renderReply(out, c.router.Process(ctx, q), c.cfg.RowLimit)
				fmt.Fprintln(out)
			}
		},
	}
}

func newServersCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List the servers in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderServers(cmd.OutOrStdout(), c.router.Registry().All())
			return nil
		},
	}
}

func newStatusCmd(c *client) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the health of every data server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderHealth(cmd.OutOrStdout(), c.router.HealthCheck(cmd.Context(), timeout))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-server health check timeout")
	return cmd
}

// targets resolves server names, or every data server when names is empty.
func (c *client) targets(names []string) ([]router.Server, error) {
	reg := c.router.Registry()
	if len(names) == 0 {
		return reg.DataServers(), nil
	}
	out := make([]router.Server, 0, len(names))
	for _, n := range names {
		srv, ok := reg.Lookup(n)
		if !ok || srv.Name == router.ClimateGPT {
			return nil, fmt.Errorf("unknown data server %q", n)
		}
		out = append(out, srv)
	}
	return out, nil
}

func newStatsCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [server...]",
		Short: "Show tool usage and routing counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := c.targets(args)
			if err != nil {
				return err
			}
			return eachServer(cmd.Context(), servers, func(ctx context.Context, srv router.Server) error {
				st, err := c.router.Stats(ctx, srv)
				if err != nil {
					return err
				}
				renderStats(cmd.OutOrStdout(), srv.Name, st)
				return nil
			}, func(err error) {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
			})
		},
	}
}

func newPurgeCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "purge [server...]",
		Short: "Clear the caches of data servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := c.targets(args)
			if err != nil {
				return err
			}
			return eachServer(cmd.Context(), servers, func(ctx context.Context, srv router.Server) error {
				msg, err := c.router.Purge(ctx, srv)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render(srv.Name), msg)
				return nil
			}, func(err error) {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
			})
		},
	}
}

// eachServer runs fn for every server in order, reporting failures and
// returning an error if any server failed.
func eachServer(ctx context.Context, servers []router.Server, fn func(context.Context, router.Server) error, report func(error)) error {
	failed := 0
	for _, srv := range servers {
		if err := fn(ctx, srv); err != nil {
			report(err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d servers failed", failed, len(servers))
	}
	return nil
}
