package internal

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "cmkit",
	Short:        "cmkit builds workspaces of CMake packages",
	Long:         `cmkit drives the CMake configure, build, install and test steps for every package of a workspace and aggregates their compile command databases.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	viper.SetDefault("build_base", "build")
	viper.SetDefault("install_base", "install")
	viper.SetDefault("manifest", "cmkit.yaml")
	viper.SetEnvPrefix("cmkit")
	viper.AutomaticEnv()
}
