package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zonal-tools/zonalio"
)

// bandsCmd represents the bands command
var bandsCmd = &cobra.Command{
	Use:   "bands [scene_dir]",
	Short: "List the bands available in a scene directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevels()

		scenes, err := zonalio.OpenSceneDir(args[0])
		if err != nil {
			return err
		}
		bands, err := scenes.Bands(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(bands, "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bandsCmd)
}
