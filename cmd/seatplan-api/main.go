package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/auth"
	"github.com/MarcoPoloResearchLab/seatplan/internal/config"
	"github.com/MarcoPoloResearchLab/seatplan/internal/database"
	"github.com/MarcoPoloResearchLab/seatplan/internal/logging"
	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
	"github.com/MarcoPoloResearchLab/seatplan/internal/planners"
	"github.com/MarcoPoloResearchLab/seatplan/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seatplan-api",
		Short: "Wedding seating plan backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL connection string")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newTokenCommand() *cobra.Command {
	var (
		plannerID   string
		email       string
		displayName string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a planner session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      appConfig.TokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueSessionToken(auth.PlannerIdentity{
				PlannerID:   plannerID,
				Email:       email,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&plannerID, "planner", "", "Planner id, optionally provider:subject")
	cmd.Flags().StringVar(&email, "email", "", "Planner email")
	cmd.Flags().StringVar(&displayName, "name", "", "Planner display name")
	_ = cmd.MarkFlagRequired("planner")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseOptions(), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		CookieName:    appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	ids := plan.NewUUIDProvider()
	plannerService, err := planners.NewService(planners.ServiceConfig{
		Database: db,
		IDs:      ids,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	store, err := plan.NewGormStore(db, time.Now)
	if err != nil {
		return err
	}
	dispatcher := server.NewRealtimeDispatcher()
	planService, err := plan.NewService(plan.ServiceConfig{
		Store:       store,
		IDProvider:  ids,
		Logger:      logger,
		SaveTimeout: appConfig.PlanSaveTimeout,
		Listener:    dispatcher.PublishChange,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Planners:         plannerService,
		PlanService:      planService,
		Realtime:         dispatcher,
		Logger:           logger,
		AllowedOrigins:   appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewHTTPServer(appConfig.HTTPAddress, handler, signalCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if err := planService.Close(shutdownCtx); err != nil {
			logger.Error("plan service shutdown failed", zap.Error(err))
		}
		return shutdownErr
	case err := <-errCh:
		if closeErr := planService.Close(context.Background()); closeErr != nil {
			logger.Error("plan service shutdown failed", zap.Error(closeErr))
		}
		return err
	}
}
