package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/app"
	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/cron"
	"github.com/qs3c/fed_comment_server/internal/pkg/retry"
	"github.com/qs3c/fed_comment_server/internal/service"
)

var (
	ErrArgRequired = errors.New("argument required")
	ErrBadID       = errors.New("invalid id")
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "fedctl",
		Usage: "Federated comment instance administration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config file",
				Value:   app.ConfigPath(),
				Aliases: []string{"c"},
			},
		},
		Commands: []*cli.Command{
			resolveCommand(),
			pruneCommand(),
			personCommand(),
			communityCommand(),
			postCommand(),
		},
	}

	return cmd.Run(context.Background(), os.Args)
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve an ap_id or @name@instance into the local database",
		ArgsUsage: "REF",
		Description: `Fetches the referenced object if it is not stored locally yet.

Examples:
  fedctl resolve http://lemmy-beta:8551/comment/1
  fedctl resolve @bob@lemmy-beta:8551
  fedctl resolve --wait --score 2 http://lemmy-beta:8551/comment/1`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Retry with backoff until the object resolves",
			},
			&cli.IntFlag{
				Name:  "score",
				Usage: "With --wait, also wait until the resolved comment has this score",
			},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			ref := c.Args().First()
			if ref == "" {
				return fmt.Errorf("REF %w", ErrArgRequired)
			}
			services := a.Services

			if !c.Bool("wait") {
				res, err := services.Resolver.Resolve(ctx, ref)
				if err != nil {
					return err
				}
				return printResolved(ctx, services, res)
			}

			cond := func(*service.Resolved) bool { return true }
			if c.IsSet("score") {
				want := c.Int("score")
				cond = func(res *service.Resolved) bool {
					if res.Comment == nil {
						return false
					}
					agg, err := services.Votes.Score(ctx, res.Comment.ID)
					return err == nil && agg.Score == want
				}
			}

			res, err := retry.Until(ctx, a.ResolveRetry(), func(ctx context.Context) (*service.Resolved, error) {
				return services.Resolver.Resolve(ctx, ref)
			}, cond)
			if err != nil {
				return fmt.Errorf("%s did not converge: %w", ref, err)
			}
			return printResolved(ctx, services, res)
		}),
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete received-activity records older than the retention period",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Usage: "Retention in days (defaults to federation.activity_retention_days)",
			},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			days := a.Config.Federation.ActivityRetentionDays
			if c.IsSet("days") {
				days = int(c.Int("days"))
			}
			svc := cron.NewService(a.Repos, &metrics.Collector{DB: a.DB}, nil, days, a.Log.Named("cron"))
			n, err := svc.Prune(ctx)
			if err != nil {
				return err
			}
			a.Log.Info("prune finished", zap.Int64("deleted", n), zap.Int("retention_days", days))
			return nil
		}),
	}
}

func personCommand() *cli.Command {
	return &cli.Command{
		Name:  "person",
		Usage: "Manage local persons",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a local person",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant instance admin",
					},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("NAME %w", ErrArgRequired)
					}
					p, err := a.Services.Persons.Create(ctx, name, c.Bool("admin"))
					if err != nil {
						return err
					}
					return printJSON(service.PersonBrief(p))
				}),
			},
			{
				Name:      "token",
				Usage:     "Issue an API token for a local person",
				ArgsUsage: "PERSON_ID",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					id, err := argID(c, 0)
					if err != nil {
						return err
					}
					token, err := a.Services.Persons.IssueToken(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(token)
				}),
			},
		},
	}
}

func communityCommand() *cli.Command {
	return &cli.Command{
		Name:  "community",
		Usage: "Manage local communities",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a local community owned by a local person",
				ArgsUsage: "OWNER_ID NAME",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					owner, err := argID(c, 0)
					if err != nil {
						return err
					}
					name := c.Args().Get(1)
					if name == "" {
						return fmt.Errorf("NAME %w", ErrArgRequired)
					}
					item, err := a.Services.Communities.CreateCommunity(ctx, owner, name)
					if err != nil {
						return err
					}
					return printJSON(item)
				}),
			},
			{
				Name:      "follow",
				Usage:     "Subscribe a local person to a community",
				ArgsUsage: "PERSON_ID COMMUNITY_AP_ID",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					person, err := argID(c, 0)
					if err != nil {
						return err
					}
					community := c.Args().Get(1)
					if community == "" {
						return fmt.Errorf("COMMUNITY_AP_ID %w", ErrArgRequired)
					}
					item, err := a.Services.Communities.Follow(ctx, person, community)
					if err != nil {
						return err
					}
					return printJSON(item)
				}),
			},
		},
	}
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Manage posts",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a post in a local community",
				ArgsUsage: "AUTHOR_ID COMMUNITY_ID NAME",
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
					author, err := argID(c, 0)
					if err != nil {
						return err
					}
					community, err := argID(c, 1)
					if err != nil {
						return err
					}
					name := c.Args().Get(2)
					if name == "" {
						return fmt.Errorf("NAME %w", ErrArgRequired)
					}
					item, err := a.Services.Communities.CreatePost(ctx, author, community, &dto.CreatePostRequest{Name: name})
					if err != nil {
						return err
					}
					return printJSON(item)
				}),
			},
		},
	}
}

// withApp 打开配置指定的实例后执行 action
func withApp(action func(ctx context.Context, c *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := app.Open(c.String("config"))
		if err != nil {
			return err
		}
		defer a.Close()
		return action(ctx, c, a)
	}
}

func argID(c *cli.Command, i int) (int64, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("ID %w", ErrArgRequired)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadID, raw)
	}
	return id, nil
}

func printResolved(ctx context.Context, services *service.Services, res *service.Resolved) error {
	switch {
	case res.Comment != nil:
		item, err := services.Comments.Get(ctx, res.Comment.ID)
		if err != nil {
			return err
		}
		return printJSON(item)
	case res.Post != nil:
		item, err := services.Communities.GetPost(ctx, res.Post.ID)
		if err != nil {
			return err
		}
		return printJSON(item)
	case res.Community != nil:
		return printJSON(service.CommunityItem(res.Community))
	default:
		return printJSON(service.PersonBrief(res.Person))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
