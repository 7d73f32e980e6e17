package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Taskboard CLI",
	Long: `Taskboard is a single-user task and project tracker.
- Tasks carry a title, priority (low/medium/high), status (pending/in-progress/completed) and an optional due date.
- Projects group tasks; a project cannot be deleted while tasks still belong to it.
- 'taskboard serve' starts the HTTP API and the browser client.`,
	SilenceUsage: true,
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("db", "TASKBOARD_DB", "DB_PATH")
	_ = viper.BindEnv("port", "TASKBOARD_PORT", "PORT")
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(configCmd())
}

// --- helpers ---

// loadSettings reads the config file and applies flag and environment
// overrides on top of it.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(viper.GetString("db")); p != "" {
		cfg.Database.Path = p
	}
	if port := viper.GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := viper.GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if pw := viper.GetString("password"); pw != "" {
		cfg.Security.Password = pw
	}
	return cfg, cfg.Validate()
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "taskboard: ", log.LstdFlags)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	e, conn, err := app.Open(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func printJSONOrYAML(v any, yamlText string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Print(yamlText)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalFlag(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
