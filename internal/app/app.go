package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"nophish/internal/app/bootstrap"
	"nophish/internal/app/server"
	"nophish/internal/auth"
	"nophish/internal/commands"
	"nophish/internal/config"
	"nophish/internal/gateway/discord"
	"nophish/internal/scanner"
	"nophish/internal/support"
)

const (
	defaultBackendPort = 8082
	handlerSlack       = 10 * time.Second
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(parseLevel(support.GetEnv("LOG_LEVEL", "info")))

	backendPortFlag := flag.Int("backend-port", defaultBackendPort, "Port for API server")
	settingsFlag := flag.String("settings", "", "Path to the settings file")
	issueTokenFlag := flag.Bool("issue-token", false, "Print an API token and exit")
	guildFlag := flag.String("guild", "", "Guild id for -issue-token")
	userFlag := flag.String("user", "", "User id for -issue-token")
	usernameFlag := flag.String("username", "", "Username for -issue-token")
	tokenTTLFlag := flag.Duration("token-ttl", auth.DefaultTokenTTL, "Lifetime of the issued token")
	flag.Parse()

	if *issueTokenFlag {
		token, err := auth.GenerateJWT(auth.Identity{
			GuildID:  *guildFlag,
			UserID:   *userFlag,
			Username: *usernameFlag,
		}, *tokenTTLFlag)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}

	config.SetSettingsPath(*settingsFlag)
	backendPort := resolvePort("BACKEND_PORT", *backendPortFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Setup(ctx)
	if err != nil {
		return err
	}
	defer components.Close()

	ownerID := support.GetEnv("DEVELOPER_USER_ID", "")
	cmdOpts := components.CommandOptions(ownerID)

	token := support.GetEnv("DISCORD_BOT_TOKEN", "")
	if token == "" {
		log.Warn("DISCORD_BOT_TOKEN not set, running the HTTP API only")
		svc := commands.New(components.Store, components.Checker, components.Registry, cmdOpts...)
		components.StartRoutines(ctx)
		return server.OpenRoutes(ctx, backendPort, server.NewRouter(svc, components.Store.Ping))
	}

	session, err := discord.NewSession(token)
	if err != nil {
		return err
	}
	cmdOpts = append(cmdOpts, commands.WithNotifier(discord.NewDeveloperNotifier(session, ownerID)))
	svc := commands.New(components.Store, components.Checker, components.Registry, cmdOpts...)

	cfg := config.GetConfig()
	scan := scanner.New(components.Checker, components.Store, discord.NewModerator(session), components.Reveals,
		scanner.WithConcurrency(cfg.Checker.ScanConcurrency))

	// handler deadlines sit above the checker timeouts so moderation calls still fit
	bot := discord.New(session, scan, svc,
		discord.WithTimeouts(config.ScanTimeout()+handlerSlack, config.CommandTimeout()+handlerSlack))
	if err := bot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Warn("Error closing discord session", "error", err)
		}
	}()

	components.StartRoutines(ctx)
	return server.OpenRoutes(ctx, backendPort, server.NewRouter(svc, components.Store.Ping))
}

func parseLevel(raw string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		log.Warn("invalid log level, using info", "value", raw)
		return log.InfoLevel
	}
	return level
}

func resolvePort(envKey string, fallback int) int {
	if port := readPort(envKey); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
