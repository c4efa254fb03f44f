package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/diwise/ngsild-client/pkg/ngsild/client"
	"github.com/diwise/ngsild-client/pkg/ngsild/loader"
	"github.com/diwise/ngsild-client/pkg/ngsild/notifications"
	"github.com/diwise/ngsild-client/pkg/ngsild/types"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/subscriptions"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ngsild",
		Short:         "interact with an NGSI-LD context broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml configuration file")
	root.PersistentFlags().String("broker", "", "context broker base url")
	root.PersistentFlags().String("tenant", "", "NGSILD-Tenant header value")

	root.AddCommand(
		newCreateCmd(&configPath),
		newGetCmd(&configPath),
		newDeleteCmd(&configPath),
		newUpsertCmd(&configPath),
		newQueryCmd(&configPath),
		newSubscribeCmd(&configPath),
		newListenCmd(&configPath),
	)

	return root
}

func brokerClient(cmd *cobra.Command, configPath string) (client.ContextBrokerClient, error) {
	cfg, err := LoadConfiguration(cmd.Context(), configPath)
	if err != nil {
		return nil, err
	}

	if broker, _ := cmd.Flags().GetString("broker"); broker != "" {
		cfg.Broker = broker
	}
	if tenant, _ := cmd.Flags().GetString("tenant"); tenant != "" {
		cfg.Tenant = tenant
	}

	options := []client.Option{}
	if cfg.Tenant != "" {
		options = append(options, client.Tenant(cfg.Tenant))
	}
	if cfg.Debug {
		options = append(options, client.Debug("true"))
	}
	if cfg.BatchSize > 0 {
		options = append(options, client.BatchSize(cfg.BatchSize))
	}
	if cfg.Concurrency > 0 {
		options = append(options, client.Concurrency(cfg.Concurrency))
	}

	return client.NewContextBrokerClient(cfg.Broker, options...), nil
}

func newCreateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <file-or-url>",
		Short: "create an entity from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			entity, err := loader.Entity(ctx, args[0])
			if err != nil {
				return err
			}

			result, err := c.CreateEntity(ctx, entity, nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Location())
			return nil
		},
	}
}

func newGetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity-id>",
		Short: "retrieve an entity by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			entity, err := c.RetrieveEntity(ctx, args[0], nil)
			if err != nil {
				return err
			}

			body, err := entity.MarshalJSON()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
}

func newDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "delete an entity by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			_, err = c.DeleteEntity(cmd.Context(), args[0])
			return err
		},
	}
}

func newUpsertCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upsert <file-or-url>",
		Short: "create or replace entities from a document or array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			batch, err := loader.Entities(ctx, args[0])
			if err != nil {
				var single types.Entity
				single, err = loader.Entity(ctx, args[0])
				if err != nil {
					return err
				}
				batch = []types.Entity{single}
			}

			result, err := c.UpsertBatch(ctx, batch, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "entities upserted: %d/%d\n", len(result.Success), len(result.Success)+len(result.Errors))

			for _, be := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", be.EntityID, be.Error.Detail)
			}

			if !result.Ok() {
				return fmt.Errorf("%d entities failed", len(result.Errors))
			}

			return nil
		},
	}
}

func newQueryCmd(configPath *string) *cobra.Command {
	var entityType, query string
	var limit int

	cmd := &cobra.Command{
		Use:   "query",
		Short: "query entities by type and filter expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			parameters := []client.RequestDecoratorFunc{}
			if entityType != "" {
				parameters = append(parameters, client.Types([]string{entityType}))
			}
			if query != "" {
				parameters = append(parameters, client.Query(query))
			}
			if limit > 0 {
				parameters = append(parameters, client.Limit(limit))
			}

			result, err := c.QueryEntities(ctx, nil, parameters...)
			if err != nil {
				return err
			}

			for e := range result.Found {
				if e == nil {
					break
				}
				fmt.Fprintln(cmd.OutOrStdout(), e.ID())
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type to query for")
	cmd.Flags().StringVar(&query, "q", "", "NGSI-LD query expression")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entities to return")

	return cmd
}

func newSubscribeCmd(configPath *string) *cobra.Command {
	var entityType string
	var watched []string

	cmd := &cobra.Command{
		Use:   "subscribe <notification-uri>",
		Short: "create a subscription notifying the given endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := brokerClient(cmd, *configPath)
			if err != nil {
				return err
			}

			decorators := []subscriptions.SubscriptionDecoratorFunc{}
			if entityType != "" {
				decorators = append(decorators, subscriptions.EntityType(entityType))
			}
			if len(watched) > 0 {
				decorators = append(decorators, subscriptions.Watch(watched...))
			}

			subscription, err := subscriptions.New(args[0], decorators...)
			if err != nil {
				return err
			}

			subscriptionID, err := c.CreateSubscription(cmd.Context(), subscription, nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), subscriptionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type to subscribe to")
	cmd.Flags().StringSliceVar(&watched, "watch", nil, "attribute names that trigger notifications")

	return cmd
}

func newListenCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "receive notifications and print the contained entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.GetFromContext(ctx)

			listener := notifications.NewListener(appName, ":"+strconv.Itoa(port), "/notify",
				func(ctx context.Context, n *subscriptions.Notification) error {
					for _, e := range n.Data {
						body, err := e.MarshalJSON()
						if err != nil {
							return err
						}
						fmt.Fprintln(cmd.OutOrStdout(), string(body))
					}
					return nil
				})

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigs
				log.Info("shutting down")
				listener.Shutdown(ctx)
			}()

			return listener.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8787, "port to listen for notifications on")

	return cmd
}
