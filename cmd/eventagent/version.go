package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of eventagent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eventagent version %s\n", strings.TrimSpace(eventagent.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
