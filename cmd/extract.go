package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"zonal-tools/zonalio"
	"zonal-tools/zonaltools"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [vector_file] [scene_dir] [output_path]",
	Short: "Extract a zonal time series for every polygon site",
	Long: `Read polygon sites from any OGR vector file and, for each site,
	average the requested bands and normalized-difference indices over the
	pixels whose centres fall inside the polygon, for every acquisition in
	the scene directory. Scenes are GeoTIFFs named after their acquisition
	date (2023-06-14.tif or 20230614_S2B.tif).

	Options:
		--site:       Attribute holding the site identifier.
		--bands:      Bands to average, by band description.
		--index:      Indices to compute. Either a known name (ndwi, mndwi,
		              ndvi, ndmi) or name=a,b, optionally followed by
		              @threshold for the positive-class fraction.
		--min-valid:  Drop acquisitions with a smaller valid-pixel fraction
		              within the site window.
		--mem-budget: Bound on concurrently held cubes, e.g. 8GiB.
		--format:     csv, parquet or sqlite. Inferred from the output
		              extension when empty.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevels()

		scenes, err := zonalio.OpenSceneDir(args[1])
		if err != nil {
			return err
		}
		cfg, err := extractConfig()
		if err != nil {
			return err
		}
		if cfg.CRS == "" || cfg.Resolution == 0 {
			g, err := scenes.Grid()
			if err != nil {
				return err
			}
			applySceneGrid(&cfg, g)
		}

		features, err := zonalio.ReadFeatures(args[0], zonalio.VectorOptions{
			Layer:     viper.GetString("layer"),
			TargetCRS: cfg.CRS,
			Buffer:    viper.GetFloat64("buffer"),
		})
		if err != nil {
			return err
		}

		format, err := outputFormat(viper.GetString("format"), args[2])
		if err != nil {
			return err
		}
		sink, err := openSink(format, args[2], cfg)
		if err != nil {
			return err
		}
		// Parquet row groups are written once, from the finished table.
		if format != "parquet" {
			cfg.Sink = sink
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		table, report, err := zonaltools.Run(ctx, features, scenes, cfg)
		if err == nil && format == "parquet" {
			err = zonalio.WriteTable(sink, table)
		}
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
		return nil
	},
}

// applySceneGrid fills the CRS and resolution left unset on the command line,
// so that cubes can be sized against the memory budget.
func applySceneGrid(cfg *zonaltools.Config, g zonaltools.Grid) {
	if cfg.CRS == "" {
		cfg.CRS = g.CRS
		logrus.Infof("Using scene CRS %s", cfg.CRS)
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = math.Abs(g.DX)
		logrus.Infof("Using scene resolution %v", cfg.Resolution)
	}
}

type closingSink interface {
	zonaltools.BatchSink
	Close() error
}

func extractConfig() (zonaltools.Config, error) {
	cfg := zonaltools.Config{
		RunID:            uuid.NewString(),
		SiteColumn:       viper.GetString("site"),
		Bands:            lower(viper.GetStringSlice("bands")),
		Resolution:       viper.GetFloat64("resolution"),
		MinValidFraction: viper.GetFloat64("min-valid"),
		Workers:          viper.GetInt("workers"),
		RevisitDays:      viper.GetFloat64("revisit-days"),
		S2Level:          viper.GetInt("s2Lvl"),
	}

	for _, s := range viper.GetStringSlice("index") {
		spec, err := zonaltools.ParseIndexSpec(s)
		if err != nil {
			return cfg, &zonaltools.ConfigError{Field: "indices", Reason: err.Error()}
		}
		cfg.Indices = append(cfg.Indices, spec)
	}

	var err error
	if cfg.Start, err = parseDate("start"); err != nil {
		return cfg, err
	}
	if cfg.End, err = parseDate("end"); err != nil {
		return cfg, err
	}
	// End dates are inclusive.
	if !cfg.End.IsZero() {
		cfg.End = cfg.End.Add(24*time.Hour - time.Nanosecond)
	}

	if budget := viper.GetString("mem-budget"); budget != "" {
		if cfg.MemoryBudget, err = humanize.ParseBytes(budget); err != nil {
			return cfg, &zonaltools.ConfigError{Field: "memory budget", Reason: err.Error()}
		}
	}
	if cfg.CRS, err = zonalio.ParseCRS(viper.GetString("crs")); err != nil {
		return cfg, &zonaltools.ConfigError{Field: "crs", Reason: err.Error()}
	}
	return cfg, cfg.Validate()
}

func parseDate(key string) (time.Time, error) {
	s := viper.GetString(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, &zonaltools.ConfigError{Field: key, Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return t, nil
}

func lower(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func outputFormat(flag, path string) (string, error) {
	if flag != "" {
		switch flag {
		case "csv", "parquet", "sqlite":
			return flag, nil
		}
		return "", &zonaltools.ConfigError{Field: "format", Reason: fmt.Sprintf("%q is not one of csv, parquet, sqlite", flag)}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".parquet":
		return "parquet", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	}
	return "", &zonaltools.ConfigError{Field: "format", Reason: fmt.Sprintf("cannot infer from %s, set --format", path)}
}

func openSink(format, path string, cfg zonaltools.Config) (closingSink, error) {
	switch format {
	case "csv":
		indices := make([]string, len(cfg.Indices))
		for i, idx := range cfg.Indices {
			indices[i] = idx.Name
		}
		return zonalio.NewCSVSink(path, cfg.Bands, indices)
	case "parquet":
		return zonalio.NewParquetSink(path, cfg.RunID)
	default:
		return zonalio.NewSQLiteSink(path, cfg.RunID)
	}
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringP("site", "s", "site", "Attribute holding the site identifier")
	f.StringSliceP("bands", "b", []string{"green", "nir"}, "Bands to average")
	f.StringArrayP("index", "i", []string{"ndwi"}, "Indices to compute: name or name=a,b[@threshold]. Repeat for more than one")
	f.String("start", "", "First acquisition date, YYYY-MM-DD")
	f.String("end", "", "Last acquisition date, YYYY-MM-DD, inclusive")
	f.Float64P("resolution", "r", 0, "Expected pixel size in CRS units. Defaults to the scene resolution")
	f.String("crs", "", "Working CRS, e.g. EPSG:32633. Defaults to the scene CRS")
	f.String("layer", "", "Vector layer to read. Defaults to the first layer")
	f.Float64("min-valid", 0, "Minimum valid-pixel fraction of an acquisition within the site window")
	f.IntP("workers", "n", 0, "Number of sites processed in parallel. 0 uses one per CPU")
	f.StringP("mem-budget", "m", "8GiB", "Memory budget for concurrently held cubes")
	f.Float64("revisit-days", zonaltools.DefaultRevisitDays, "Expected days between acquisitions, used to size cubes")
	f.Float64("buffer", 0, "Buffer distance applied to each polygon, in CRS units")
	f.IntP("s2Lvl", "l", zonaltools.DefaultS2Level, "S2 cell level of the site key")
	f.String("format", "", "Output format: csv, parquet or sqlite")

	for _, name := range []string{"site", "bands", "index", "start", "end", "resolution", "crs", "layer",
		"min-valid", "workers", "mem-budget", "revisit-days", "buffer", "s2Lvl", "format"} {
		bindFlag(extractCmd, name)
	}
}
