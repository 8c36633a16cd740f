package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dmarkov/approvalflow/internal/auth"
	internal_http "github.com/dmarkov/approvalflow/internal/http"
	"github.com/dmarkov/approvalflow/internal/log"
	internal_storage "github.com/dmarkov/approvalflow/internal/storage"
	"github.com/dmarkov/approvalflow/pkg/models"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the approval workflow HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			port, _ := cmd.Flags().GetString("port")
			store := initStore(connStr(cmd))
			defer store.Close()
			if err := internal_http.StartServer(port, store, tokenSecret()); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port to listen on")
	serveCmd.Flags().String("db", "", "Database connection string (optional if DB_* env vars are set)")

	createAdminCmd := &cobra.Command{
		Use:   "create-admin [email] [name] [password]",
		Short: "Bootstrap an admin account",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(connStr(cmd))
			defer store.Close()
			svc := auth.NewService(store, tokenSecret())
			user, err := svc.Register(args[0], args[1], args[2], models.AdminRole)
			if err != nil {
				log.GetLogger().Errorf("Failed to create admin: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to create admin: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Created admin '%s' with ID %s\n", user.Email, user.ID)
		},
	}
	createAdminCmd.Flags().String("db", "", "Database connection string (optional if DB_* env vars are set)")

	rootCmd.AddCommand(serveCmd, createAdminCmd)
}

func connStr(cmd *cobra.Command) string {
	if err := godotenv.Load(); err != nil {
		log.GetLogger().Debugf("No .env file found: %v", err)
	}
	if s, _ := cmd.Flags().GetString("db"); s != "" {
		return s
	}
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		fmt.Println("Error: --db flag or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
		os.Exit(1)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}

func tokenSecret() string {
	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		log.GetLogger().Warnf("TOKEN_SECRET not set; using an insecure default")
		secret = "insecure-dev-secret"
	}
	return secret
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
