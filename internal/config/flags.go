package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags adds the logging override flags to a host application's command
// and binds them into v.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	fs := cmd.PersistentFlags()
	fs.String("log-config", "", "Logging configuration file (default is the built-in document)")
	fs.String("log-dir", "", "Directory for the debug log when no filename is configured (default ./logs)")
	fs.String("log-file", "", "Explicit path of the debug log file")
	fs.String("console-level", "", "Override the console handler level (e.g. DEBUG, INFO, 5)")

	for key, flag := range map[string]string{
		KeyConfigFile:   "log-config",
		KeyLogDir:       "log-dir",
		KeyLogFile:      "log-file",
		KeyConsoleLevel: "console-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
