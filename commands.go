package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ajperformance/storefront/backend/browse"
	"github.com/ajperformance/storefront/backend/config"
	"github.com/ajperformance/storefront/backend/handlers"
	"github.com/ajperformance/storefront/backend/middleware"
	"github.com/ajperformance/storefront/backend/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var (
	browseSearch   string
	browseCategory string
	browsePage     int
	browseLive     bool
	browseUsers    bool
	browseAdmins   bool
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List the storefront catalog from the terminal",
	Long: `List e-books the way the storefront shows them.

With --live, read commands from stdin: plain text replaces the search term
(debounced like the storefront search box), ":n" and ":p" page, ":c <id>"
filters by category (":c" alone clears it), ":q" quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var promoteRevoke bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant (or with --revoke, remove) admin access for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPromote(cmd.Context(), args[0], !promoteRevoke, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, browseCmd, promoteCmd)

	browseCmd.Flags().StringVarP(&browseSearch, "search", "s", "", "Search title and description")
	browseCmd.Flags().StringVarP(&browseCategory, "category", "c", "", "Category id to filter on")
	browseCmd.Flags().IntVarP(&browsePage, "page", "p", 1, "Page to show")
	browseCmd.Flags().BoolVar(&browseLive, "live", false, "Read search and paging commands from stdin")
	browseCmd.Flags().BoolVar(&browseUsers, "users", false, "List user accounts instead of e-books")
	browseCmd.Flags().BoolVar(&browseAdmins, "admins", false, "With --users, only list admins")

	promoteCmd.Flags().BoolVar(&promoteRevoke, "revoke", false, "Remove admin access instead of granting it")
}

func runServe(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.LogEnv()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	router := handlers.NewRouter(handlers.Deps{
		Categories:     a.categories,
		EBooks:         a.ebooks,
		Users:          a.users,
		Images:         a.images,
		Identity:       a.identity,
		VerifyURL:      cfg.VerifyURL,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthLimiter:    middleware.NewRateLimiter(cfg.AuthRatePerSecond, cfg.AuthBurst),
		TrustProxy:     cfg.TrustProxy,
		SecureCookies:  cfg.CookieSecure,
	})
	server := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	return nil
}

func runBrowse(ctx context.Context, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()
	if browseUsers {
		return listUsers(ctx, a, out)
	}

	var sf *browse.Storefront
	render := func() { printListing(out, sf.Books.Snapshot()) }
	opts := []browse.Option{browse.WithDebounce(cfg.SearchDebounce)}
	if browseLive {
		opts = append(opts, browse.WithOnChange(render))
	}
	sf = browse.NewStorefront(ctx, a.ebooks, a.categories, opts...)
	defer sf.Close()

	cats := sf.ReloadCategories(ctx)
	switch {
	case browseCategory != "":
		sf.Books.SetCategory(ctx, browseCategory)
		if browseSearch != "" {
			sf.Books.SetSearch(browseSearch)
			sf.Books.Flush(ctx)
		}
	case browseSearch != "":
		sf.Books.SetSearch(browseSearch)
		sf.Books.Flush(ctx)
	default:
		sf.Books.Load(ctx)
	}
	if browsePage > 1 {
		sf.Books.SetPage(ctx, browsePage)
	}
	if !browseLive {
		render()
		return nil
	}
	for _, c := range cats {
		fmt.Fprintf(out, "category %s  %s\n", c.ID.Hex(), c.Name)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == ":q":
			return nil
		case line == ":n":
			sf.Books.Next(ctx)
		case line == ":p":
			sf.Books.Prev(ctx)
		case line == ":c" || strings.HasPrefix(line, ":c "):
			sf.Books.SetCategory(ctx, strings.TrimSpace(strings.TrimPrefix(line, ":c")))
		default:
			sf.Books.SetSearch(line)
		}
	}
	sf.Books.Flush(ctx)
	return scanner.Err()
}

func printListing(out io.Writer, snap browse.Snapshot[models.EBookView]) {
	if snap.State == browse.Failed {
		fmt.Fprintf(out, "could not load e-books: %v\n", snap.Err)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE")
	for _, b := range snap.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.CategoryName, b.PriceLabel)
	}
	tw.Flush()
	fmt.Fprintf(out, "page %d of %d, %d e-books\n", snap.Page, max(snap.TotalPages, 1), snap.Total)
}

func listUsers(ctx context.Context, a *app, out io.Writer) error {
	con := browse.NewConsole(ctx, a.categories, a.ebooks, a.users, browse.WithDebounce(cfg.SearchDebounce))
	defer con.Close()

	if browseAdmins {
		isAdmin := true
		con.Users.SetAdminFilter(ctx, &isAdmin)
	}
	if browseSearch != "" {
		con.Users.SetSearch(browseSearch)
		con.Users.Flush(ctx)
	} else if !browseAdmins {
		con.Users.Load(ctx)
	}
	snap := con.Users.SetPage(ctx, browsePage)
	if snap.State == browse.Failed {
		return snap.Err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tADMIN")
	for _, u := range snap.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.ID.Hex(), u.FullName, u.Email, u.IsAdmin)
	}
	tw.Flush()
	fmt.Fprintf(out, "page %d of %d, %d users\n", snap.Page, max(snap.TotalPages, 1), snap.Total)
	return nil
}

func runPromote(ctx context.Context, email string, isAdmin bool, out io.Writer) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	account, err := a.db.AccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("no account for %s", email)
	}
	if _, err := a.users.Ensure(ctx, account, account.Provider); err != nil {
		return err
	}
	if !isAdmin {
		admins, err := a.db.AdminsCount(ctx)
		if err != nil {
			return err
		}
		current, err := a.users.Get(ctx, account.ID.Hex())
		if err != nil {
			return err
		}
		if current.IsAdmin && admins <= 1 {
			return fmt.Errorf("%s is the last admin; promote someone else first", account.Email)
		}
	}
	user, err := a.users.SetAdmin(ctx, account.ID.Hex(), isAdmin)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s isAdmin=%t\n", user.Email, user.IsAdmin)
	return nil
}
