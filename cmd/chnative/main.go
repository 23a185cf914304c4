package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/client"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/config"
	"github.com/ajitpratap0/chnative/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHNATIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "chnative",
		Short: "chnative - ClickHouse native protocol client",
		Long: `chnative speaks the ClickHouse native TCP protocol directly: columnar
blocks, LZ4/ZSTD compressed frames, and streamed result sets.`,
	}

	root.PersistentFlags().String("config", "", "Path to client YAML config file")
	root.PersistentFlags().String("address", "localhost:9000", "Server address (host:port)")
	root.PersistentFlags().String("database", "default", "Database to use")
	root.PersistentFlags().String("user", "default", "Username")
	root.PersistentFlags().String("password", "", "Password (prefer CHNATIVE_PASSWORD)")
	root.PersistentFlags().String("compression", "lz4", "Frame compression: lz4, zstd, none")
	root.PersistentFlags().String("log-level", "error", "Log level (debug, info, warn, error)")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chnative v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers on the native port",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			start := time.Now()
			c, err := client.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Printf("%s (%s, revision %d): ok in %s\n",
				cfg.Connection.Address, c.Server().Name, c.Revision(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	})

	var columnar bool
	queryCmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a query and print rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(v)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), cfg, args[0], columnar)
		},
	}
	queryCmd.Flags().BoolVar(&columnar, "columnar", false,
		"Print one JSON object per block, column name to value array")
	root.AddCommand(queryCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildConfig merges the optional YAML file with flag and environment
// overrides.
func buildConfig(v *viper.Viper) (*config.Config, error) {
	var cfg *config.Config
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.New()
	}

	if v.IsSet("address") || cfg.Connection.Address == "" {
		cfg.Connection.Address = v.GetString("address")
	}
	if v.IsSet("database") {
		cfg.Connection.Database = v.GetString("database")
	}
	if v.IsSet("user") {
		cfg.Connection.Username = v.GetString("user")
	}
	if pw := v.GetString("password"); pw != "" {
		cfg.Connection.Password = pw
	}
	switch v.GetString("compression") {
	case "none":
		cfg.Compression.Enabled = false
	case "lz4", "zstd":
		cfg.Compression.Enabled = true
		cfg.Compression.Method = v.GetString("compression")
	}
	cfg.Observability.LogLevel = v.GetString("log-level")

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "console",
	}); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func runQuery(ctx context.Context, cfg *config.Config, sql string, columnar bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	c, err := client.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	rows, err := c.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()

	enc := json.NewEncoder(os.Stdout)
	count := 0
	if columnar {
		for {
			b, err := rows.NextBlock()
			if err != nil {
				return err
			}
			if b == nil {
				break
			}
			if err := enc.Encode(columnarRecord(b)); err != nil {
				return err
			}
			count += b.Rows()
		}
	} else {
		for rows.Next() {
			record := make(map[string]interface{}, len(rows.Columns()))
			for i, name := range rows.Columns() {
				record[name] = rows.Value(i)
			}
			if err := enc.Encode(record); err != nil {
				return err
			}
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	logger.Get().Info("query complete",
		zap.Int("rows", count),
		zap.Uint64("rows_read", rows.Progress().Rows),
		zap.Uint64("bytes_read", rows.Progress().Bytes))
	return nil
}

// columnarRecord flattens one block into a column-name-to-values map.
func columnarRecord(b *block.Block) map[string][]column.Value {
	record := make(map[string][]column.Value, len(b.Columns))
	for _, col := range b.Columns {
		record[col.Name] = col.Data
	}
	return record
}
