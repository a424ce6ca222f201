package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"libman/dashboard"
	"libman/library"
	"libman/metadata"
	"libman/usecase"
)

const defaultDBFile = "libman.db"

var (
	dbPath  string
	verbose bool

	db   *library.Database
	repo *library.Repository
	log  *zap.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "libman",
		Short:         "Library circulation manager backed by an embedded SQLite catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if log, err = newLogger(); err != nil {
				return err
			}
			if db, err = library.OpenDatabase(cmd.Context(), dbPath); err != nil {
				return err
			}
			repo = library.NewRepository(db, library.SystemClock{}, log)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if db != nil {
				db.Close()
			}
			if log != nil {
				log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBFile, "path to the SQLite database")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newCatalogCmd(),
		newIntakeCmd(),
		newBorrowCmd(),
		newReturnCmd(),
		newPatronCmd(),
		newDashboardCmd(),
		newPasswdCmd(),
		newLoginCmd(),
	)
	return root
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List all cataloged books ordered by title",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			ch, err := repo.ObserveBooks(ctx)
			if err != nil {
				return err
			}
			books := <-ch

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ISBN-13\tTITLE\tAUTHOR\tAVAILABLE")
			for _, b := range books {
				author := ""
				if b.Author != nil {
					author = *b.Author
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n", b.ISBN13, b.Title, author, b.AvailableCount, b.CopyCount)
			}
			return w.Flush()
		},
	}
}

func newIntakeCmd() *cobra.Command {
	var (
		copies   int
		title    string
		author   string
		noLookup bool
		wqxURL   string
	)
	cmd := &cobra.Command{
		Use:   "intake ISBN13",
		Short: "Catalog copies of a book, enriching metadata from ISBN providers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lookup metadata.LookupService
			if !noLookup {
				httpClient := &http.Client{Timeout: 10 * time.Second}
				providers := []metadata.LookupService{
					metadata.NewGoogleBooksClient(httpClient, "", os.Getenv("LIBMAN_GOOGLE_BOOKS_KEY")),
				}
				if wqxURL != "" {
					providers = append(providers, metadata.NewWqxClient(httpClient, wqxURL))
				}
				lookup = metadata.NewComposite(log, providers...)
			}

			intake := usecase.NewIntakeBook(repo, lookup, library.SystemClock{}, log)
			res, err := intake.Execute(cmd.Context(), args[0], copies, title, author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cataloged %q (%s): %d/%d copies available\n",
				res.Book.Title, res.Book.ISBN13, res.Book.AvailableCount, res.Book.CopyCount)
			if !res.Enriched && !noLookup {
				fmt.Fprintln(cmd.OutOrStdout(), "Note: no metadata provider knew this ISBN.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&copies, "copies", 1, "number of physical copies to add")
	cmd.Flags().StringVar(&title, "title", "", "title override")
	cmd.Flags().StringVar(&author, "author", "", "author override")
	cmd.Flags().BoolVar(&noLookup, "no-lookup", false, "skip metadata providers")
	cmd.Flags().StringVar(&wqxURL, "wqx-url", "", "base URL of the WQX search API")
	return cmd
}

func newBorrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow ISBN13 STUDENT_ID",
		Short: "Borrow one copy of a book for a patron",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := usecase.NewBorrowBook(repo).Execute(cmd.Context(), args[0], args[1])
			if !outcome.Ok() {
				if outcome.Cause != nil {
					return fmt.Errorf("%s: %w", outcome.Message, outcome.Cause)
				}
				return fmt.Errorf("%s", outcome.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
			if loan, err := repo.LatestLoan(cmd.Context()); err == nil && loan != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Loan id: %d\n", loan.LoanID)
			}
			return nil
		},
	}
}

func newReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Return a borrowed copy by loan id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var loanID int64
			if _, err := fmt.Sscanf(args[0], "%d", &loanID); err != nil {
				return fmt.Errorf("loan id must be a number: %q", args[0])
			}
			outcome := usecase.NewReturnBook(repo).Execute(cmd.Context(), loanID)
			if !outcome.Ok() {
				if outcome.Cause != nil {
					return fmt.Errorf("%s: %w", outcome.Message, outcome.Cause)
				}
				return fmt.Errorf("%s", outcome.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
			return nil
		},
	}
}

func newPatronCmd() *cobra.Command {
	patron := &cobra.Command{
		Use:   "patron",
		Short: "Manage registered patrons",
	}
	patron.AddCommand(
		&cobra.Command{
			Use:   "add STUDENT_ID NAME",
			Short: "Register or rename a patron",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := library.Patron{
					StudentID: args[0],
					Name:      args[1],
					JoinedAt:  time.Now().UnixMilli(),
				}
				if err := repo.UpsertPatrons(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", p.Name, p.StudentID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List patrons ordered by name",
			RunE: func(cmd *cobra.Command, _ []string) error {
				patrons, err := repo.ListPatrons(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STUDENT ID\tNAME\tJOINED")
				for _, p := range patrons {
					joined := time.UnixMilli(p.JoinedAt).UTC().Format("2006-01-02")
					fmt.Fprintf(w, "%s\t%s\t%s\n", p.StudentID, p.Name, joined)
				}
				return w.Flush()
			},
		},
	)
	return patron
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show catalog totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			watcher, err := dashboard.Watch(ctx, repo)
			if err != nil {
				return err
			}
			s := watcher.Latest()
			if s.Empty {
				fmt.Fprintln(cmd.OutOrStdout(), "The catalog is empty.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Titles: %d\nCopies: %d\nAvailable: %d\nChecked out: %d\n",
				s.TotalTitles, s.TotalCopies, s.AvailableCopies, s.CheckedOutCopies)
			return nil
		},
	}
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Set the admin password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword("New admin password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Repeat password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
			if err := db.SetAdminPassword(cmd.Context(), password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin password updated.")
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the admin password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword("Admin password: ")
			if err != nil {
				return err
			}
			if err := db.VerifyAdminPassword(cmd.Context(), password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

// readPassword reads a password with terminal echo disabled.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
