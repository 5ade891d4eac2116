package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the registered task handlers",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := newLogger(cfg)

		agent, cleanup, err := buildAgent(cfg, logger, nil)
		if err != nil {
			fmt.Printf("Error initializing agent: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		var b strings.Builder
		b.WriteString("# Task catalog\n\n")
		for _, d := range agent.Catalog().Descriptors() {
			fmt.Fprintf(&b, "- `%s` **%s** (%s): %s\n",
				d.ID, d.Name, d.Domain, strings.Join(d.Tags, ", "))
		}

		stats := agent.Catalog().Stats()
		domains := make([]string, 0, len(stats))
		for d := range stats {
			domains = append(domains, string(d))
		}
		sort.Strings(domains)

		b.WriteString("\n## Handlers per domain\n\n")
		for _, d := range domains {
			fmt.Fprintf(&b, "- %s: %d\n", d, stats[catalog.Domain(d)])
		}

		printMarkdown(b.String())
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
