package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "topicbook",
		Short:         "Research a topic and write a personalized Markdown book",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(&cfgPath), generateCMD(&cfgPath), booksCMD(&cfgPath), eventsCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
