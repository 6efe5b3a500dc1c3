// Command discussionctl runs maintenance tasks against the configured
// comment store: demo seeding, counter repair and thread counts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/config"
	"github.com/example/discussion-platform/internal/platform/logging"
	"github.com/example/discussion-platform/services/discussion/internal/app"
	"github.com/example/discussion-platform/services/discussion/internal/comments"
	"github.com/example/discussion-platform/services/discussion/internal/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "discussionctl",
		Short:         "Maintenance commands for the discussion service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSeedCmd(), newReconcileCmd(), newCountCmd())
	return root
}

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the comment store with generated discussions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *comments.Service) error {
				sum, err := seed.New(svc, opts).Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, sum)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Posts, "posts", opts.Posts, "number of posts to create threads for")
	f.IntVar(&opts.Users, "users", opts.Users, "number of distinct authors")
	f.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "comments per post")
	f.Float64Var(&opts.ReplyRatio, "reply-ratio", opts.ReplyRatio, "share of comments that are replies")
	f.Float64Var(&opts.LikeRatio, "like-ratio", opts.LikeRatio, "chance a user likes a comment")
	f.Float64Var(&opts.DeleteRatio, "delete-ratio", opts.DeleteRatio, "share of comments soft deleted afterwards")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <comment-id>",
		Short: "Recompute reply and like counters of one comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *comments.Service) error {
				c, err := svc.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, svc.View(c, ""))
			})
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <post-id>",
		Short: "Print the number of comments in a post's thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *comments.Service) error {
				n, err := svc.CountComments(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"post_id": args[0], "count": n})
			})
		},
	}
}

func withService(ctx context.Context, fn func(context.Context, *comments.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-ctl")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cs, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := fn(ctx, comments.NewService(cs, log.Named("comments"))); err != nil {
		log.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
