package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entitycache/graphwire/scene"
	redisbackend "github.com/entitycache/graphwire/wire/backends/redis"
	"github.com/entitycache/graphwire/wire/runtime"
)

const pingTimeout = 3 * time.Second

func (c *CLI) publishCommand() *cobra.Command {
	var (
		redisAddr string
		depthFlag string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Store snapshots of the demo scene in Redis",
		Long: `Register every game object of the demo scene with the snapshot manager.
Each object is stored under its hierarchy path and announced on its pub/sub
channel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			depth, err := c.depth(depthFlag)
			if err != nil {
				return err
			}
			ttl, err := c.Config.Snapshot.ParsedTTL()
			if err != nil {
				return err
			}
			addr := redisAddr
			if addr == "" {
				addr = c.Config.Snapshot.RedisAddr
			}

			client := redis.NewClient(&redis.Options{Addr: addr})
			defer func() { _ = client.Close() }()

			ctx := cmd.Context()
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				return errors.Wrapf(err, "connect to redis at %s", addr)
			}

			backend, err := redisbackend.NewBackend(client, redisbackend.WithChannelPrefix(c.Config.Snapshot.ChannelPrefix))
			if err != nil {
				return err
			}
			manager, err := runtime.NewManager(backend,
				runtime.WithEngine(c.engine()),
				runtime.WithNamespace(c.Config.Snapshot.Namespace),
				runtime.WithDefaultTTL(ttl),
				runtime.WithDepth(depth),
				runtime.WithFormat(c.Config.Snapshot.Format),
				runtime.WithLogger(c.Logger))
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			for _, g := range scene.Demo().GameObjects() {
				handle, err := manager.Register(ctx, g.Path(), g)
				if err != nil {
					return errors.Wrapf(err, "register %s", g.Path())
				}
				snapshot, _ := handle.Snapshot()
				c.Logger.Info("snapshot stored",
					zap.String("key", snapshot.Key),
					zap.Int64("version", snapshot.Version),
					zap.String("status", string(snapshot.Status)))
				if _, err := fmt.Fprintf(c.out, "%s\tv%d\t%s\n", snapshot.Key, snapshot.Version, snapshot.Status); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address (defaults to snapshot.redis_addr)")
	cmd.Flags().StringVarP(&depthFlag, "depth", "d", "", "serialization depth: basic, standard or deep")

	return cmd
}
