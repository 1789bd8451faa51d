package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wechange-eg/conference-hub/bbb"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/room"
	"github.com/wechange-eg/conference-hub/settings"
	"github.com/wechange-eg/conference-hub/streaming"
	"github.com/wechange-eg/conference-hub/types"
)

// A very simple CLI tool for the administration of conference-hub settings
// records, rooms and streamers.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")

	persister persistence.Persister
	resolver  *settings.Resolver
	manager   *room.Manager
	cfg       *config.Config
)

func main() {
	log.SetFlags(0)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	cfg = globalConfig

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err = persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	cache, err := settings.NewCache(globalConfig.CacheConfig.Size, globalConfig.CacheConfig.TTL)
	if err != nil {
		panic(err)
	}
	resolver = settings.NewResolver(persister, cache, globalConfig.BBBConfig.PortalParams)
	manager = room.NewManager(persister, resolver, bbb.NewClient(globalConfig))

	rootCmd := &cobra.Command{
		Use:   "conference-hub-admin",
		Short: "administration of conference-hub settings, rooms and streamers",
	}
	rootCmd.AddCommand(settingsCmd(), roomsCmd(), sweepCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func chainObject(objectType, id string) (types.ChainMember, error) {
	switch objectType {
	case types.ObjectTypeEvent:
		return persister.GetEvent(id)
	case types.ObjectTypeConferenceRoom:
		return persister.GetConferenceRoom(id)
	case types.ObjectTypeGroup:
		return persister.GetGroup(id)
	case types.ObjectTypePortal:
		return persister.GetPortal(id)
	}
	return nil, fmt.Errorf("unknown object type %q", objectType)
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "inspect and edit conference settings records",
	}

	var noTraversal bool
	getCmd := &cobra.Command{
		Use:   "get TYPE ID",
		Short: "resolve the merged settings composite for an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := chainObject(args[0], args[1])
			if err != nil {
				return err
			}
			res, err := resolver.GetForObject(obj, noTraversal)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Println("no settings configured")
				return nil
			}
			out := map[string]interface{}{
				"bbb_server_choice":         res.ServerChoice,
				"bbb_server_choice_premium": res.ServerChoicePremium,
				"nature":                    res.Nature,
				"bbb_params":                res.Params,
				"finalized_params":          res.FinalizedParams(resolver.PortalDefaults),
			}
			ba, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(ba))
			return nil
		},
	}
	getCmd.Flags().BoolVar(&noTraversal, "no-traversal", false, "only the object's own record, no chain merge")

	var serverChoice, premiumChoice int
	var paramsJSON string
	setCmd := &cobra.Command{
		Use:   "set TYPE ID",
		Short: "store an override record for an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := chainObject(args[0], args[1])
			if err != nil {
				return err
			}
			rec := types.ConferenceSettings{
				BBBServerChoice:        types.ServerChoice(serverChoice),
				BBBServerChoicePremium: types.ServerChoice(premiumChoice),
			}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &rec.BBBParams); err != nil {
					return err
				}
			}
			return resolver.StoreSettings(obj, rec)
		},
	}
	setCmd.Flags().IntVar(&serverChoice, "server-choice", 0, "server cluster choice (0 = inherit)")
	setCmd.Flags().IntVar(&premiumChoice, "premium-choice", 0, "premium server cluster choice (0 = inherit)")
	setCmd.Flags().StringVar(&paramsJSON, "params", "", "bbb params as JSON, f.e. '{\"create\":{\"record\":\"true\"}}'")

	clearCmd := &cobra.Command{
		Use:   "clear TYPE ID",
		Short: "delete an object's override record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := chainObject(args[0], args[1])
			if err != nil {
				return err
			}
			return resolver.StoreSettings(obj, types.ConferenceSettings{})
		},
	}

	cmd.AddCommand(getCmd, setCmd, clearCmd)
	return cmd
}

func roomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "inspect, end and restart bbb rooms",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list all rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := persister.GetRooms()
			if err != nil {
				return err
			}
			for _, r := range rooms {
				state := "active"
				if r.Ended {
					state = "ended"
				}
				fmt.Printf("%s\t%s\t%s\t%d attendees\t%d moderators\n", r.SourceKey, r.MeetingID, state, len(r.Attendees), len(r.Moderators))
			}
			return nil
		},
	}

	endCmd := &cobra.Command{
		Use:   "end EVENT_ID",
		Short: "end the room of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := persister.GetEvent(args[0])
			if err != nil {
				return err
			}
			return manager.EndRoom(room.EventSource{Event: event})
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart EVENT_ID",
		Short: "re-issue the create call for the room of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := persister.GetEvent(args[0])
			if err != nil {
				return err
			}
			return manager.RestartRoom(room.EventSource{Event: event})
		},
	}

	cmd.AddCommand(listCmd, endCmd, restartCmd)
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "run one streamer sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.StreamingConfig.ApiUrl == "" {
				return fmt.Errorf("no streaming api configured")
			}
			sweeper := streaming.NewSweeper(persister, streaming.NewClient(cfg), cfg)
			sweeper.RunExclusive(cfg.StreamingConfig.LockPath)
			return nil
		},
	}
}
