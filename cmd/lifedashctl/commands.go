package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lifedash/internal/auth"
	"lifedash/internal/config"
	"lifedash/internal/ledger"
	"lifedash/internal/remote/rest"
	"lifedash/internal/session"
)

func sessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			infos, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, infos, sessionsTable(infos))
		},
	}
}

// filterFlags mirrors the query parameters accepted by the HTTP API.
type filterFlags struct {
	txType, category, from, to, search, min, max, tags string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.txType, "type", "", "income, expense or all")
	cmd.Flags().StringVar(&f.category, "category", "", "Category name or all")
	cmd.Flags().StringVar(&f.from, "from", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&f.to, "to", "", "End date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVarP(&f.search, "search", "q", "", "Case-insensitive text in description or category")
	cmd.Flags().StringVar(&f.min, "min", "", "Minimum amount, e.g. 10.50")
	cmd.Flags().StringVar(&f.max, "max", "", "Maximum amount")
	cmd.Flags().StringVar(&f.tags, "tags", "", "Comma-separated tags, any one matches")
}

func (f *filterFlags) filter() (ledger.Filter, error) {
	q := url.Values{}
	for key, v := range map[string]string{
		"type": f.txType, "category": f.category, "startDate": f.from, "endDate": f.to,
		"q": f.search, "minAmount": f.min, "maxAmount": f.max, "tags": f.tags,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	return rest.ParseFilter(q)
}

// loadSession restores userID from the store and applies the filter flags.
func loadSession(cmd *cobra.Command, opts *options, userID string, flags *filterFlags) (*session.Session, func(), error) {
	f, err := flags.filter()
	if err != nil {
		return nil, nil, err
	}
	repo, manager, err := opts.openStore()
	if err != nil {
		return nil, nil, err
	}
	if _, found, err := repo.Load(cmd.Context(), userID); err != nil || !found {
		repo.Close()
		if err == nil {
			err = fmt.Errorf("no snapshot for user %q", userID)
		}
		return nil, nil, err
	}
	s, release, err := manager.Acquire(cmd.Context(), userID)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	s.SetFilter(f)
	return s, func() {
		release()
		repo.Close()
	}, nil
}

func listCmd(opts *options) *cobra.Command {
	flags := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's stored transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := loadSession(cmd, opts, args[0], flags)
			if err != nil {
				return err
			}
			defer done()

			txs := s.FilteredTransactions()
			return render(cmd.OutOrStdout(), opts.output, txs, transactionsTable(txs))
		},
	}
	flags.register(cmd)
	return cmd
}

func statsCmd(opts *options) *cobra.Command {
	flags := &filterFlags{}
	var monthly bool
	cmd := &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Show totals for a user's filtered transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := loadSession(cmd, opts, args[0], flags)
			if err != nil {
				return err
			}
			defer done()

			if monthly {
				months := s.MonthlySummary()
				return render(cmd.OutOrStdout(), opts.output, months, monthsTable(months))
			}
			st := s.Stats()
			return render(cmd.OutOrStdout(), opts.output, st, statsTable(st))
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&monthly, "monthly", false, "Break totals down by calendar month")
	return cmd
}

func eventsCmd(opts *options) *cobra.Command {
	var day, from, to string
	cmd := &cobra.Command{
		Use:   "events <user-id>",
		Short: "List a user's calendar events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if day != "" && (from != "" || to != "") {
				return errors.New("--day cannot be combined with --from/--to")
			}
			s, done, err := loadSession(cmd, opts, args[0], &filterFlags{})
			if err != nil {
				return err
			}
			defer done()

			events := s.Events()
			switch {
			case day != "":
				d, err := parseDate(day)
				if err != nil {
					return err
				}
				events = s.EventsOn(d)
			case from != "" || to != "":
				if from == "" || to == "" {
					return errors.New("--from and --to must be given together")
				}
				start, err := parseDate(from)
				if err != nil {
					return err
				}
				end, err := parseDate(to)
				if err != nil {
					return err
				}
				events = s.EventsBetween(start, end.Add(24*time.Hour-time.Nanosecond))
			}
			return render(cmd.OutOrStdout(), opts.output, events, eventsTable(events))
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Only events occurring on this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Range end, inclusive (YYYY-MM-DD)")
	return cmd
}

func purgeCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge <user-id>",
		Short: "Delete a user's stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to purge without --yes")
			}
			repo, manager, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := manager.Purge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

// ackCmd marks records synced by hand, for acks the worker sent but the
// server never received.
func ackCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <user-id> <record-id>...",
		Short: "Mark stored transactions as synced",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, manager, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			userID := args[0]
			if _, found, err := repo.Load(ctx, userID); err != nil {
				return err
			} else if !found {
				return fmt.Errorf("no snapshot for user %q", userID)
			}
			s, release, err := manager.Acquire(ctx, userID)
			if err != nil {
				return err
			}
			defer release()

			for _, id := range args[1:] {
				if _, ok := s.Transaction(id); !ok {
					return fmt.Errorf("user %q has no transaction %q", userID, id)
				}
			}
			for _, id := range args[1:] {
				if err := s.MarkSynced(id); err != nil {
					return err
				}
			}
			if err := manager.Flush(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d record(s) synced for %s\n", len(args)-1, userID)
			return nil
		},
	}
}

func tokenCmd(cfg *config.Config) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := auth.New(cfg.JWTSecret)
			if !a.Enforced() {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := a.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}
