package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tilesheet/internal/stitch"
	"github.com/kiesman99/tilesheet/pkg/tile"
)

const version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "tilesheet <file-pattern>... <output-file>",
	Short:   "Combine a directory of images into a single tile sheet",
	Version: version,
	Long: `tilesheet reads every image matching a file pattern and draws them onto a
single grid image, written in the format implied by the output extension.

Tiles are packed into the smallest square grid that holds them; each cell is
as large as the largest input. With --build-cardinals every tile gets its own
row holding the original and copies rotated 90, 180 and 270 degrees clockwise.

Every argument but the last is a file pattern, so a pattern left unquoted and
expanded by the shell works too. The last argument is the output file.

Examples:
  # Combine all PNG files in the current directory
  tilesheet "*.png" output.png

  # One row of four rotations per grass tile
  tilesheet "tiles/grass*.png" tiles/cmb/grass.png --build-cardinals

  # Fill unused cells with white instead of leaving them transparent
  tilesheet "icons/*.png" icons.jpg --background "#ffffff"

  # Start HTTP server
  tilesheet serve --port 8080`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if viper.GetBool("verbose") {
			level = log.DebugLevel
		}
		cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no args, show help
		if len(args) == 0 {
			return cmd.Help()
		}
		return runTileSheet(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := run(context.Background()); err != nil {
		os.Exit(1)
	}
}

// run executes the root command. Failures are reported on stdout next to the
// usage text and "Done!", so scripts reading one stream see the outcome.
func run(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(rootCmd.OutOrStdout(), "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tilesheet.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	// Sheet options
	rootCmd.Flags().BoolP("build-cardinals", "c", false, "render four copies of each tile rotated 90 degrees apart")
	rootCmd.Flags().StringP("background", "b", "", "fill color for empty cells as #rrggbb (default: transparent)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("build-cardinals", rootCmd.Flags().Lookup("build-cardinals"))
	viper.BindPFlag("background", rootCmd.Flags().Lookup("background"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".tilesheet" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tilesheet")
	}

	viper.SetEnvPrefix("tilesheet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runTileSheet(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		cmd.Help()
		return tile.Errorf(tile.InvalidInput, "expected a file pattern and an output file, got %d argument(s)", len(args))
	}
	patterns, output := args[:len(args)-1], args[len(args)-1]

	bg, err := tile.ParseColor(viper.GetString("background"))
	if err != nil {
		return err
	}

	opts := &tile.SheetOptions{
		BuildCardinals: viper.GetBool("build-cardinals"),
		Background:     bg,
	}

	stitcher := stitch.NewStitcher(opts, loggerFromContext(cmd.Context()))
	if _, err := stitcher.StitchFiles(cmd.Context(), patterns, output); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Done!")
	return nil
}
