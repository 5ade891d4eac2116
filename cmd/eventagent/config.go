package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Prints the effective configuration after merging defaults, the config
file, and EVENTAGENT_* environment variables. Secrets are redacted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Redis.Password != "" {
			cfg.Redis.Password = "<redacted>"
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("Error rendering config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
