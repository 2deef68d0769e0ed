package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/prefsync/internal/profile"
	"github.com/hrygo/prefsync/internal/version"
	"github.com/hrygo/prefsync/server"
	"github.com/hrygo/prefsync/server/auth"
	"github.com/hrygo/prefsync/store"
	"github.com/hrygo/prefsync/store/db"
)

const (
	greetingBanner = `prefsync - preference exchange service`
)

var rootCmd = &cobra.Command{
	Use:   "prefsync",
	Short: "A service that persists a chess client's preference sets across sessions",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := loadProfile()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		storeInstance, err := newStore(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to initialize store", slog.String("error", err.Error()))
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", slog.String("error", err.Error()))
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", greetingBanner, version.GetCurrentVersion(instanceProfile.Mode))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.Start(gctx)
		})
		if err := g.Wait(); err != nil {
			slog.Error("server stopped with error", slog.String("error", err.Error()))
		}

		shutdownCtx := context.Background()
		s.Shutdown(shutdownCtx)
	},
}

var userAddCmd = &cobra.Command{
	Use:   "user-add",
	Short: "Create a user account for the credential exchange variant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile := loadProfile()
		ctx := cmd.Context()

		storeInstance, err := newStore(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer storeInstance.Close()

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user, err := storeInstance.CreateUser(ctx, &store.User{
			Username:     username,
			Role:         store.Role(role),
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created user %q with role %s\n", user.Username, user.Role)
		return nil
	},
}

func loadProfile() *profile.Profile {
	instanceProfile := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Addr:        viper.GetString("addr"),
		Port:        viper.GetInt("port"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		Protocol:    viper.GetString("protocol"),
		InstanceURL: viper.GetString("instance-url"),
		Secret:      viper.GetString("secret"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	return instanceProfile
}

func newStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, err
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		return nil, err
	}
	return storeInstance, nil
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("prefsync")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8231, "binding port for the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("protocol", profile.ProtocolToken, `exchange protocol variant, can be "token" or "credential"`)
	rootCmd.PersistentFlags().String("instance-url", "", "public url of this instance")
	rootCmd.PersistentFlags().String("secret", "", "session signing secret; generated per boot when empty")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "protocol", "instance-url", "secret"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	userAddCmd.Flags().String("username", "", "username of the new account")
	userAddCmd.Flags().String("password", "", "password of the new account")
	userAddCmd.Flags().String("role", string(store.RoleUser), "role of the new account")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(userAddCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
