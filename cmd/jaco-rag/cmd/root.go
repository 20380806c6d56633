package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacochat/jaco-rag/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "jaco-rag",
	Short: "jaco-rag: retrieval pipeline for the Jaco chatbot",
	Long: `jaco-rag crawls a site about Jaco, chunks and embeds the pages,
and stores them in a vector index so the chatbot can answer with
grounded context.

Commands:
  seed     Crawl a site and index its content
  context  Retrieve context for a query
  clear    Delete all indexed vectors in a namespace
  serve    Start the HTTP API server
  mcp      Start the MCP server over stdio`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/jaco-rag")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// JACORAG_INDEX_API_KEY -> index.api_key
	viper.SetEnvPrefix("JACORAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("index.backend", "JACORAG_INDEX_BACKEND")
	viper.BindEnv("index.name", "JACORAG_INDEX_NAME")
	viper.BindEnv("index.namespace", "JACORAG_INDEX_NAMESPACE")
	viper.BindEnv("index.api_key", "JACORAG_INDEX_API_KEY")
	viper.BindEnv("index.cloud", "JACORAG_INDEX_CLOUD")
	viper.BindEnv("index.region", "JACORAG_INDEX_REGION")
	viper.BindEnv("index.addresses", "JACORAG_INDEX_ADDRESSES")
	viper.BindEnv("index.username", "JACORAG_INDEX_USERNAME")
	viper.BindEnv("index.password", "JACORAG_INDEX_PASSWORD")
	viper.BindEnv("embeddings.api_key", "JACORAG_EMBEDDINGS_API_KEY")
	viper.BindEnv("embeddings.model", "JACORAG_EMBEDDINGS_MODEL")
	viper.BindEnv("crawler.max_depth", "JACORAG_CRAWLER_MAX_DEPTH")
	viper.BindEnv("crawler.max_pages", "JACORAG_CRAWLER_MAX_PAGES")
	viper.BindEnv("google.credentials_file", "JACORAG_GOOGLE_CREDENTIALS_FILE")
	viper.BindEnv("google.credentials_json", "JACORAG_GOOGLE_CREDENTIALS_JSON")
	viper.BindEnv("archive.enabled", "JACORAG_ARCHIVE_ENABLED")
	viper.BindEnv("archive.endpoint", "JACORAG_ARCHIVE_ENDPOINT")
	viper.BindEnv("server.port", "JACORAG_SERVER_PORT")
	viper.BindEnv("mcp.name", "JACORAG_MCP_NAME")
	viper.BindEnv("mcp.version", "JACORAG_MCP_VERSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses may arrive as a comma-separated string from env
	if addrs := os.Getenv("JACORAG_INDEX_ADDRESSES"); addrs != "" {
		cfg.Index.Addresses = strings.Split(addrs, ",")
	}
}
