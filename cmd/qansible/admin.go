package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/security"
	"github.com/qualimetry/qansible/internal/storage"
)

var validRoles = map[string]bool{"admin": true, "editor": true, "viewer": true}

func newUsersCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage API users"}
	var dbPath, username, role, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user (password from --password or QANSIBLE_PASSWORD)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			if username == "" {
				return configErr(errors.New("users add: --username is required"))
			}
			if !validRoles[role] {
				return configErr(fmt.Errorf("users add: unknown role %q", role))
			}
			if password == "" {
				password = os.Getenv("QANSIBLE_PASSWORD")
			}
			hash, err := security.HashPassword(password)
			if err != nil {
				return configErr(err)
			}
			if dbPath == "" {
				dbPath = cfg.Database.DSN
			}
			db, err := openDB(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			id, err := db.CreateUser(username, hash, role)
			if err != nil {
				return err
			}
			_ = db.LogAudit("cli", "users:add", username, map[string]any{"role": role})
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) created, id %d\n", username, role, id)
			return nil
		},
	}
	add.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	add.Flags().StringVar(&username, "username", "", "Login name")
	add.Flags().StringVar(&role, "role", "viewer", "Role: admin, editor or viewer")
	add.Flags().StringVar(&password, "password", "", "Password")
	cmd.AddCommand(add)
	return cmd
}

func newWaiversCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "waivers", Short: "Manage finding waivers"}
	var dbPath string
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")

	withDB := func(fn func(db *storage.DB, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			p := dbPath
			if p == "" {
				p = cfg.Database.DSN
			}
			db, err := openDB(p)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return fn(db, cmd)
		}
	}

	var w storage.Waiver
	var expires string
	add := &cobra.Command{
		Use:   "add",
		Short: "Waive findings of a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			if w.RuleKey == "" || w.Reason == "" {
				return configErr(errors.New("waivers add: --rule and --reason are required"))
			}
			if !eng.cat.Known(w.RuleKey) {
				return configErr(fmt.Errorf("waivers add: unknown rule %q", w.RuleKey))
			}
			exp, err := parseExpiry(expires, time.Now())
			if err != nil {
				return configErr(err)
			}
			w.ExpiresAt = exp
			return withDB(func(db *storage.DB, cmd *cobra.Command) error {
				id, err := db.CreateWaiver(w)
				if err != nil {
					return err
				}
				_ = db.LogAudit(w.CreatedBy, "waivers:create", strconv.FormatInt(id, 10), map[string]any{"rule_key": w.RuleKey})
				fmt.Fprintf(cmd.OutOrStdout(), "waiver %d created, expires %s\n", id, w.ExpiresAt.Format(time.RFC3339))
				return nil
			})(cmd, args)
		},
	}
	add.Flags().StringVar(&w.RuleKey, "rule", "", "Rule key")
	add.Flags().StringVar(&w.FileGlob, "file", "", "File glob; a trailing / matches a directory")
	add.Flags().StringVar(&w.PatternSub, "pattern", "", "Only waive messages containing this text")
	add.Flags().StringVar(&w.Reason, "reason", "", "Why the findings are accepted")
	add.Flags().StringVar(&expires, "expires", "720h", "Expiry as a duration from now or an RFC3339 time")
	add.Flags().StringVar(&w.CreatedBy, "by", "cli", "Recorded author")

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List waivers",
		RunE: withDB(func(db *storage.DB, cmd *cobra.Command) error {
			ws, err := db.ListWaivers(!all)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRULE\tFILE\tPATTERN\tEXPIRES\tSTATE\tREASON")
			now := time.Now()
			for _, w := range ws {
				state := "active"
				switch {
				case w.RevokedAt != nil:
					state = "revoked"
				case !w.Active(now):
					state = "expired"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", w.ID, w.RuleKey, w.FileGlob, w.PatternSub,
					w.ExpiresAt.Format(time.DateOnly), state, w.Reason)
			}
			return tw.Flush()
		}),
	}
	list.Flags().BoolVar(&all, "all", false, "Include revoked and expired waivers")

	var id int64
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a waiver",
		RunE: withDB(func(db *storage.DB, cmd *cobra.Command) error {
			if id <= 0 {
				return configErr(errors.New("waivers revoke: --id is required"))
			}
			if err := db.RevokeWaiver(id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("waiver %d not found or already revoked", id)
				}
				return err
			}
			_ = db.LogAudit("cli", "waivers:revoke", strconv.FormatInt(id, 10), nil)
			fmt.Fprintf(cmd.OutOrStdout(), "waiver %d revoked\n", id)
			return nil
		}),
	}
	revoke.Flags().Int64Var(&id, "id", 0, "Waiver ID")

	cmd.AddCommand(add, list, revoke)
	return cmd
}

// parseExpiry accepts a Go duration relative to now or an RFC3339 time. The
// result must lie in the future.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	var t time.Time
	if d, err := time.ParseDuration(s); err == nil {
		t = now.Add(d)
	} else if t, err = time.Parse(time.RFC3339, s); err != nil {
		return time.Time{}, fmt.Errorf("bad expiry %q: use a duration like 720h or RFC3339", s)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("expiry %s is not in the future", t.Format(time.RFC3339))
	}
	return t.UTC(), nil
}
