package main

import (
	"fmt"
	"time"

	"github.com/aescanero/dago-node-prompt/internal/registry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type storeOptions struct {
	addr   string
	db     int
	prefix string
	ttl    time.Duration
}

func (s *storeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.addr, "redis-addr", "localhost:6379", "Redis address of the manifest store")
	cmd.Flags().IntVar(&s.db, "redis-db", 0, "Redis database of the manifest store")
	cmd.Flags().StringVar(&s.prefix, "prefix", registry.DefaultPrefix, "key prefix of stored manifests")
}

// open connects to the store. The caller closes the client.
func (s *storeOptions) open(cmd *cobra.Command) (*registry.RedisStore, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: s.addr,
		DB:   s.db,
	})
	if err := client.Ping(cmd.Context()).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", s.addr, err)
	}
	return registry.NewRedisStore(client, s.prefix, nil), client, nil
}

func newStoreCmds(opts *options) []*cobra.Command {
	pushOpts := &storeOptions{}
	push := &cobra.Command{
		Use:   "push MANIFEST...",
		Short: "compile manifests and save them to the Redis store workers load from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, opts, pushOpts, args)
		},
	}
	pushOpts.register(push)
	push.Flags().DurationVar(&pushOpts.ttl, "ttl", 0, "expire pushed manifests after this duration (0 keeps them)")

	lsOpts := &storeOptions{}
	ls := &cobra.Command{
		Use:   "ls",
		Short: "list the manifests in the Redis store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, lsOpts)
		},
	}
	lsOpts.register(ls)

	rmOpts := &storeOptions{}
	rm := &cobra.Command{
		Use:   "rm NAME...",
		Short: "delete manifests from the Redis store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd, rmOpts, args)
		},
	}
	rmOpts.register(rm)

	return []*cobra.Command{push, ls, rm}
}

func runPush(cmd *cobra.Command, opts *options, storeOpts *storeOptions, paths []string) error {
	env, err := opts.environment()
	if err != nil {
		return err
	}

	// nothing is saved unless every manifest compiles
	reg := registry.New(env, nil, nil)
	manifests := make([]*registry.Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := registry.LoadFile(path)
		if err != nil {
			return err
		}
		if _, err := reg.Register(m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		manifests = append(manifests, m)
	}

	store, client, err := storeOpts.open(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	for _, m := range manifests {
		exists, err := store.Exists(ctx, m.Name)
		if err != nil {
			return err
		}
		if err := store.Save(ctx, m); err != nil {
			return err
		}
		if storeOpts.ttl > 0 {
			if err := store.SetTTL(ctx, m.Name, storeOpts.ttl); err != nil {
				return err
			}
		}

		action := "created"
		if exists {
			action = "updated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", action, m.Name)
	}

	return nil
}

func runList(cmd *cobra.Command, storeOpts *storeOptions) error {
	store, client, err := storeOpts.open(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	names, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runRemove(cmd *cobra.Command, storeOpts *storeOptions, names []string) error {
	store, client, err := storeOpts.open(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, name := range names {
		if err := store.Delete(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
	}
	return nil
}
