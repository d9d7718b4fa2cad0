// Package main provides the atomic CLI entry point.
//
// This is the thin, non-goal shell spec §1 carves out of scope ("the CLI
// surface and argument parsing... is not in scope; only the interfaces in
// §6 matter"): each subcommand opens a pkg/repo.Repository and calls
// straight into pkg/apply, pkg/tag, or pkg/repo. Grounded on the
// teacher's cmd/nornicdb/main.go for its cobra root+subcommand shape and
// os/signal.NotifyContext shutdown pattern; none of its database-specific
// subcommands (serve, shell, decay, import) survive, since the graph
// database, Bolt/Cypher, and memory-decay product surface they drove was
// deleted (see DESIGN.md's "Deleted teacher packages").
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/pristine"
	"github.com/castingclouds/atomic-go/pkg/repo"
	"github.com/castingclouds/atomic-go/pkg/tag"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "atomic:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atomic",
		Short:         "atomic is a patch-based version control engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("atomic v%s\n", version)
			},
		},
		newInitCmd(),
		newStateCmd(),
		newLogCmd(),
		newApplyCmd(),
		newTagCmd(),
		newIdentityCmd(),
	)
	return root
}

func repoDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("repo", ".", "repository working-copy root")
}

func openRepo(cmd *cobra.Command) (*repo.Repository, error) {
	dir, _ := cmd.Flags().GetString("repo")
	return repo.Open(dir)
}

func channelFlag(cmd *cobra.Command) {
	cmd.Flags().String("channel", "", "channel name (defaults to the repository's configured default channel)")
}

func channelOf(cmd *cobra.Command, r *repo.Repository) string {
	name, _ := cmd.Flags().GetString("channel")
	if name == "" {
		return r.Config.Core.DefaultChannel
	}
	return name
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", abs, err)
			}
			r, err := repo.Init(abs)
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Printf("Initialized empty repository in %s/.atomic\n", abs)
			return nil
		},
	}
	return cmd
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current channel state (position, merkle, last tag)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ch := r.Channel(channelOf(cmd, r))
			return r.Pristine.View(func(txn *pristine.Txn) error {
				merkle, err := ch.CurrentState(txn)
				if err != nil {
					return err
				}
				pos, err := ch.ApplyCounter(txn)
				if err != nil {
					return err
				}
				last, hasTag, err := ch.LastTag(txn)
				if err != nil {
					return err
				}
				tagStr := "-"
				if hasTag {
					tagStr = last.String()
				}
				fmt.Printf("%d %s %s\n", pos, merkle, tagStr)
				return nil
			})
		},
	}
	repoDirFlag(cmd)
	channelFlag(cmd)
	return cmd
}

func newLogCmd() *cobra.Command {
	var since uint64
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List applied changes from a given position",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ch := r.Channel(channelOf(cmd, r))
			return r.Pristine.View(func(txn *pristine.Txn) error {
				n, err := ch.ApplyCounter(txn)
				if err != nil {
					return err
				}
				for pos := since; pos < n; pos++ {
					entry, ok, err := ch.LogAt(txn, pos)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					nt, _, err := r.GraphTables.NodeType.Get(txn, entry.Node)
					if err != nil {
						return err
					}
					marker := "C"
					if nt.String() == "Tag" {
						marker = "T"
					}
					fmt.Printf("%d.%s.%s.%s\n", pos, marker, entry.Hash, entry.Merkle)
				}
				return nil
			})
		},
	}
	repoDirFlag(cmd)
	channelFlag(cmd)
	cmd.Flags().Uint64Var(&since, "since", 0, "starting position")
	return cmd
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <change-file>",
		Short: "Store and apply a change file to a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			c, err := change.ReadFile(f)
			if err != nil {
				return fmt.Errorf("reading change file %s: %w", args[0], err)
			}
			hash, err := r.Files.PutChange(c)
			if err != nil {
				return err
			}

			ch := r.Channel(channelOf(cmd, r))
			err = r.Pristine.Update(func(w *pristine.WriteTxn) error {
				store := r.ChangeStoreFor(&w.Txn)
				return apply.ApplyNodeRec(w, r.GraphTables, ch, store, hash)
			})
			if err != nil {
				var already *apply.ChangeAlreadyOnChannelError
				if errors.As(err, &already) {
					fmt.Printf("%s already applied\n", hash)
					return nil
				}
				return err
			}
			fmt.Printf("applied %s\n", hash)
			return nil
		},
	}
	repoDirFlag(cmd)
	channelFlag(cmd)
	return cmd
}

func newTagCmd() *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Consolidating-tag operations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a consolidating tag at the channel's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			message, _ := cmd.Flags().GetString("message")
			author, _ := cmd.Flags().GetString("author")
			ch := r.Channel(channelOf(cmd, r))

			var created *tag.Tag
			err = r.Pristine.Update(func(w *pristine.WriteTxn) error {
				t, err := tag.Create(w, r.GraphTables, r.TagStore, ch, message, author, time.Now().Unix())
				if err != nil {
					return err
				}
				// Create only registers tag_metadata; applying it to the
				// channel (the tags row + apply-counter advance) goes
				// through the ordinary node-apply path like any other
				// hash (spec §4.5).
				store := r.ChangeStoreFor(&w.Txn)
				if _, _, err := apply.ApplyNodeWS(w, r.GraphTables, ch, store, t.TagHash); err != nil {
					return err
				}
				created = t
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("created tag %s (consolidates %d changes)\n", created.TagHash, created.ConsolidatedChangeCount)
			return nil
		},
	}
	createCmd.Flags().String("message", "", "tag message")
	createCmd.Flags().String("author", "", "tag author")
	repoDirFlag(createCmd)
	channelFlag(createCmd)
	tagCmd.AddCommand(createCmd)
	return tagCmd
}

func newIdentityCmd() *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity records (attribution only, no key management)",
	}

	addCmd := &cobra.Command{
		Use:   "add <key-id> <name> <email>",
		Short: "Record an identity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.PutIdentity(repo.Identity{KeyID: args[0], Name: args[1], Email: args[2]})
		},
	}
	repoDirFlag(addCmd)

	listCmd := &cobra.Command{
		Use:   "list [since-unix-seconds]",
		Short: "List identities modified since an optional timestamp",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			var since time.Time
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("malformed timestamp %q: %w", args[0], err)
				}
				since = time.Unix(n, 0).UTC()
			}
			ids, err := r.IdentitiesSince(since)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Printf("%s %s <%s>\n", id.KeyID, id.Name, id.Email)
			}
			return nil
		},
	}
	repoDirFlag(listCmd)

	identityCmd.AddCommand(addCmd, listCmd)
	return identityCmd
}
