package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func Execute() error {
	var root = &cobra.Command{
		Use:          "groundchat",
		Short:        "Answer questions grounded on the web pages they mention",
		SilenceUsage: true,
	}

	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(serveCMD(&cfgPath), askCMD(&cfgPath))
	return root.Execute()
}
