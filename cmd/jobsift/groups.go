package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List all configured search groups",
	Long:  "Reads the config and prints a table of all configured search groups.",
	RunE:  runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-16s %-24s %-8s %-9s %s\n", "ID", "Name", "Status", "Strong>=", "Keywords")
	fmt.Println(strings.Repeat("─", 80))

	active, inactive := 0, 0
	for _, g := range cfg.Groups {
		status := "active"
		if !g.Active {
			status = "inactive"
			inactive++
		} else {
			active++
		}
		fmt.Printf("%-16s %-24s %-8s %-9d %s\n",
			g.ID, g.Name, status, g.Thresholds.StrongMatchMin(), strings.Join(g.Keywords, ", "))
	}

	fmt.Printf("\nTotal: %d groups (%d active, %d inactive)\n", len(cfg.Groups), active, inactive)
	return nil
}
