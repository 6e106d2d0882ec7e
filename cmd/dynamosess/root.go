package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jjeffery/dynamosessions/dynamodbstore"
	"github.com/jjeffery/dynamosessions/internal/config"
	"github.com/jjeffery/dynamosessions/sessionstore"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "dynamosess",
	Short:         "dynamosess manages a DynamoDB web session table",
	Long:          `dynamosess creates, inspects and sweeps the table used by the DynamoDB session store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("table", "", "DynamoDB table name")
	flags.String("region", "", "AWS region")
	flags.String("aws-config", "", "JSON file with AWS credentials and region")
	flags.String("endpoint", "", "DynamoDB endpoint, eg for DynamoDB Local")
	flags.String("prefix", "", "session id prefix")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the configuration file named by --config and applies
// any flags set on the command line over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	overrides := map[string]*string{
		"table":      &cfg.Table,
		"region":     &cfg.Region,
		"aws-config": &cfg.AWSConfigPath,
		"endpoint":   &cfg.Endpoint,
		"prefix":     &cfg.Prefix,
		"log-level":  &cfg.LogLevel,
	}
	for name, field := range overrides {
		if flags.Changed(name) {
			*field, _ = flags.GetString(name)
		}
	}
	return cfg, nil
}

// openStore builds the session store described by the command's
// configuration. The background sweep is disabled unless watch is set.
func openStore(cmd *cobra.Command, watch bool) (*sessionstore.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := newStore(cmd, cfg, watch)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newStore(cmd *cobra.Command, cfg *config.Config, watch bool) (*sessionstore.Store, error) {
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	if !watch {
		opts.ReapInterval = -1
	}
	return dynamodbstore.New(cmd.Context(), opts)
}

func storeOptions(cfg *config.Config) (dynamodbstore.Options, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return dynamodbstore.Options{}, err
	}
	opts := cfg.Options(logger)
	opts.Client = clientOverride
	return opts, nil
}

// clientOverride replaces the AWS client in tests.
var clientOverride dynamodbiface.DynamoDBAPI
