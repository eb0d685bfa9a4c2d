package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wurstmineberg/wurstminebot"
	"github.com/wurstmineberg/wurstminebot/mclog"
	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

var version = "2.0.0-dev"

var (
	configPath string
	debug      bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "wurstminebot",
		Short:         "IRC and Minecraft bridge bot for Wurstmineberg",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/opt/wurstmineberg/config/wurstminebot.json", "Configuration file, in JSON or YAML format")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debugging messages as well")

	rootCmd.AddCommand(
		newRunCmd(),
		newClassifyCmd(),
		newWipeDBCmd(),
		newVersionCmd(),
	)
	return rootCmd.ExecuteContext(ctx)
}

func setupLogging() *log.Logger {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	wurstminebot.SetLogger(logger)
	wurstminebot.SetDebug(debug)
	return logger
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to IRC and follow the Minecraft server (the default)",
		Args:  cobra.NoArgs,
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	logger := setupLogging()

	store, err := wurstminebot.LoadConfig(configPath)
	if err != nil {
		return err
	}
	config := store.Get()
	if config.Debug && !debug {
		wurstminebot.SetDebug(true)
	}

	server, err := minecraft.NewDocker(config.Minecraft.Container, config.Minecraft.StopTimeout)
	if err != nil {
		return fmt.Errorf("cannot connect to Docker: %v", err)
	}
	defer server.Close()

	db, err := wurstminebot.OpenDB(config.Paths.DB)
	if err != nil {
		return fmt.Errorf("cannot open database in %s: %v", config.Paths.DB, err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: wurstminebot.NetworkTimeout}
	opts := &wurstminebot.Options{
		Config:     store,
		People:     people.NewStore(config.Paths.People, people.NewMojangProfiles(httpClient)),
		DB:         db,
		Minecraft:  server,
		HTTPClient: httpClient,
		Version:    version,
	}
	if config.Twitter.Enabled() {
		opts.Poster = twitter.New(config.Twitter.Credentials, config.Twitter.ScreenName, wurstminebot.NetworkTimeout)
	} else {
		logger.Printf("[twitter] No credentials configured, tweeting is disabled")
	}

	bot := wurstminebot.New(opts)
	if err := bot.Start(); err != nil {
		return err
	}

	select {
	case <-cmd.Context().Done():
		logger.Printf("Shutting down")
		err = bot.Stop()
	case <-bot.Dying():
		err = bot.Wait()
	}

	var quit *wurstminebot.QuitError
	if errors.As(err, &quit) {
		if !quit.Restart {
			return nil
		}
		server.Close()
		db.Close()
		return restart()
	}
	return err
}

// restart replaces the running process with a fresh copy of itself.
func restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot restart: %v", err)
	}
	log.Printf("Restarting %s", exe)
	return syscall.Exec(exe, os.Args, os.Environ())
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [<log line>...]",
		Short: "Print the events found in Minecraft server log lines",
		Long:  "Classifies the given log lines, or the lines read from standard input when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			classify := func(line string) {
				ev, err := mclog.Classify(line)
				if err != nil {
					return
				}
				switch ev.Kind {
				case mclog.Death:
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", ev.Kind, ev.DeathID, ev.Player, ev.Partial)
				default:
					fmt.Fprintf(out, "%s\t%s\t%s\n", ev.Kind, ev.Player, ev.Text)
				}
			}
			if len(args) > 0 {
				for _, line := range args {
					classify(line)
				}
				return nil
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				classify(scanner.Text())
			}
			return scanner.Err()
		},
	}
}

func newWipeDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe-db",
		Short: "Delete the chat and death log database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			store, err := wurstminebot.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return wurstminebot.WipeDB(store.Get().Paths.DB)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bot version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wurstminebot %s\n", version)
		},
	}
}
