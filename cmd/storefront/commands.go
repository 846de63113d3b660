package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/christlandtech/storefront-client/catalog"
	"github.com/christlandtech/storefront-client/internal/utils"
	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/query"
	"github.com/christlandtech/storefront-client/session"
	"github.com/spf13/cobra"
)

type contextKey struct{}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(contextKey{}).(*app)
}

// cli is the root command plus the app it builds before any subcommand runs.
// The app is closed by whoever executes the command, whether it failed or not.
type cli struct {
	root *cobra.Command
	app  *app
}

func newCLI() *cli {
	c := &cli{}
	var verbose, quiet bool
	c.root = &cobra.Command{
		Use:           "storefront",
		Short:         "Command line client for the Christland Tech storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(verbose)
			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return err
			}
			c.app = a
			if !quiet {
				displayAppname(a.cfg.GetAppName())
			}
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, a))
			return nil
		},
	}
	c.root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests and cache activity")
	c.root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")
	c.root.SetContext(context.Background())

	c.root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newRefreshCmd(),
		newLangCmd(),
		newProductsCmd(),
		newCategoriesCmd(),
		newLatestCmd(),
		newStatsCmd(),
	)
	return c
}

func (c *cli) execute(args []string) error {
	c.root.SetArgs(args)
	return c.root.Execute()
}

func (c *cli) close() {
	if c.app != nil {
		c.app.close()
	}
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the dashboard and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if password == "" {
				password = os.Getenv("STOREFRONT_PASSWORD")
			}
			u, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgLoggedInAs, map[string]any{
				"Name": u.DisplayName(),
				"Role": u.Role,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (defaults to $STOREFRONT_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.store.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgLoggedOut, nil))
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			u := a.store.User(ctx)
			if u == nil || (!a.store.IsLoggedIn(ctx) && a.store.Refresh(ctx) == "") {
				fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgNotLoggedIn, nil))
				return nil
			}
			// asks the server so an expired access token is refreshed
			if fresh, err := a.api.Me(ctx); err == nil {
				u = fresh
			} else {
				a.logger.Debug().Err(err).Msg("whoami: using stored user")
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgLoggedInAs, map[string]any{
				"Name": u.DisplayName(),
				"Role": u.Role,
			}))
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if _, err := a.api.Refresh(cmd.Context()); err != nil {
				return err
			}
			u := a.store.User(cmd.Context())
			if u == nil {
				u = &session.User{}
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgLoggedInAs, map[string]any{
				"Name": u.DisplayName(),
				"Role": u.Role,
			}))
			return nil
		},
	}
}

func newLangCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lang [fr|en]",
		Short: "Show or change the interface language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if len(args) == 1 {
				if err := a.lang.Set(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.msg(locale.MsgLanguageChanged, map[string]any{"Lang": a.lang.Current()}))
			return nil
		},
	}
}

func newProductsCmd() *cobra.Command {
	var search, category, sort string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List or search products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			params := query.Params{"category": category, "sort": sort, "page": page, "page_size": pageSize}
			if strings.TrimSpace(search) != "" {
				if !catalog.SearchEnabled(search) {
					return fmt.Errorf("search needs at least %d characters", catalog.SearchMinLength)
				}
				params = catalog.SearchParams(search, catalog.SearchOptions{
					Page:     page,
					PageSize: pageSize,
					Extra:    query.Params{"category": category, "sort": sort},
				})
			}
			res, err := a.catalog.GetProducts(cmd.Context(), params)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNOM\tMARQUE\tPRIX")
			for _, p := range res.Results {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Nom, utils.Value(p.Marque).Nom, p.PrixFrom)
			}
			fmt.Fprintf(w, "\t%d\t\t\n", res.Count)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "search text")
	cmd.Flags().StringVar(&category, "category", "", "category slug")
	cmd.Flags().StringVar(&sort, "sort", "", "sort order")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 24, "results per page")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			q := a.catalog.TopCategories(level)
			defer q.Close()
			q.Refetch()
			st := q.State()
			if st.Err != nil {
				return st.Err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tNOM")
			if st.Data != nil {
				for _, c := range *st.Data {
					fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Slug, c.Nom)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "only categories at this depth")
	return cmd
}

func newLatestCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			q := a.catalog.LatestProducts()
			defer q.Close()
			out := cmd.OutOrStdout()

			if !watch {
				q.Refetch()
				st := q.State()
				if st.Err != nil {
					return st.Err
				}
				printLatest(out, st)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			unsubscribe := q.Subscribe(func(st query.State[[]catalog.LatestProduct]) {
				if st.Loading {
					return
				}
				if st.Error != "" {
					fmt.Fprintln(out, st.Error)
					return
				}
				printLatest(out, st)
			})
			defer unsubscribe()
			q.Start()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and print every refresh")
	return cmd
}

func printLatest(out io.Writer, st query.State[[]catalog.LatestProduct]) {
	if st.Data == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOM\tPRIX")
	for _, p := range *st.Data {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.Price)
	}
	_ = w.Flush()
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			s, err := a.catalog.GetDashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "users\t%d\n", s.Users)
			fmt.Fprintf(w, "products\t%d\n", s.Products)
			fmt.Fprintf(w, "stock\t%d\n", s.ProductsStock)
			fmt.Fprintf(w, "articles\t%d\n", s.Articles)
			fmt.Fprintf(w, "messages\t%d\n", s.Messages)
			return w.Flush()
		},
	}
}
