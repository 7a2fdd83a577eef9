package main

import (
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/joeblew999/bikemap/internal/db"
	"github.com/joeblew999/bikemap/internal/prep"
)

// prepCommand builds the overlay data files the catalog points at.
func prepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prep",
		Short: "Prepare overlay data files",
	}

	crashes := &cobra.Command{
		Use:   "crashes CRASHES.csv VICTIMS.csv OUT.geojson",
		Short: "Join crash and victim CSV exports into a crash point overlay",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr, verbose(cmd))
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			conn, _, err := db.Open(db.Config{})
			if err != nil {
				return err
			}
			defer conn.Close()

			fc, err := prep.Crashes(ctx, conn, args[0], args[1], logger)
			if err != nil {
				return err
			}
			return write(args[2], fc, logger)
		},
	}

	simplify := &cobra.Command{
		Use:   "simplify IN.geojson OUT.geojson",
		Short: "Simplify line and polygon geometry and drop empty properties",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr, verbose(cmd))
			tolerance, _ := cmd.Flags().GetFloat64("tolerance")

			fc, err := prep.ReadFile(args[0])
			if err != nil {
				return err
			}
			return write(args[1], prep.Simplify(fc, tolerance), logger)
		},
	}
	simplify.Flags().Float64P("tolerance", "t", 5, "Simplification tolerance in meters")

	centers := &cobra.Command{
		Use:   "centers IN.geojson OUT.geojson",
		Short: "Replace each polygon with a point at its centroid, for symbol overlays",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr, verbose(cmd))
			fc, err := prep.ReadFile(args[0])
			if err != nil {
				return err
			}
			points, err := prep.Centers(fc)
			if err != nil {
				return err
			}
			return write(args[1], points, logger)
		},
	}

	cmd.AddCommand(crashes, simplify, centers)
	return cmd
}

func verbose(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}

func write(path string, fc *geojson.FeatureCollection, logger *log.Logger) error {
	if err := prep.WriteFile(path, fc); err != nil {
		return err
	}
	logger.Info("wrote overlay", "path", path, "features", len(fc.Features))
	return nil
}
