package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"panotrack/internal/api"
	"panotrack/internal/export"
	"panotrack/internal/ipc"
	"panotrack/internal/tracks"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	tracksCmd := &cobra.Command{
		Use:   "tracks",
		Short: "Browse and export the track catalog",
	}

	var listReq ipc.TracksListRequest
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				list, err := b.Tracks(cmd.Context(), listReq)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, ctx.format(), list); done {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No tracks")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Captured", "Points", "Length", "Images"},
					trackRows(list),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	addFilterFlags(listCmd, &listReq)
	listCmd.Flags().IntVar(&listReq.Limit, "limit", 0, "Maximum number of tracks")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a track and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(func(b backend) error {
				track, images, err := b.Track(cmd.Context(), id)
				if err != nil {
					return err
				}
				payload := ipc.TrackShowResponse{Track: track, Images: images}
				if done, err := writeStructured(cmd, ctx.format(), payload); done {
					return err
				}
				renderTrack(cmd, track, images)
				return nil
			})
		},
	}

	var exportReq ipc.TracksListRequest
	var outPath string
	var withImages bool
	var imagesOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write tracks (and optionally images) to Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				return errors.New("--out is required")
			}
			tracksPath, err := resolvePath(outPath)
			if err != nil {
				return err
			}
			imagesPath := ""
			if withImages || imagesOut != "" {
				imagesPath = imagesOut
				if imagesPath == "" {
					imagesPath = imagesPathFor(tracksPath)
				}
				if imagesPath, err = resolvePath(imagesPath); err != nil {
					return err
				}
			}
			filter, err := api.ParseFilter(exportReq.Start, exportReq.End, exportReq.BBox, exportReq.Order)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := tracks.Open(cfg)
			if err != nil {
				return err
			}
			defer catalog.Close()

			result, err := export.ToFiles(cmd.Context(), catalog, filter, tracksPath, imagesPath)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd, ctx.format(), result); done {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d track(s), %d vertices to %s\n", result.Tracks, result.Vertices, tracksPath)
			if imagesPath != "" {
				fmt.Fprintf(out, "Wrote %d image(s) to %s\n", result.Images, imagesPath)
			}
			return nil
		},
	}
	addFilterFlags(exportCmd, &exportReq)
	exportCmd.Flags().StringVar(&outPath, "out", "", "Destination Parquet file for track vertices")
	exportCmd.Flags().BoolVar(&withImages, "images", false, "Also export image records next to --out")
	exportCmd.Flags().StringVar(&imagesOut, "images-out", "", "Destination Parquet file for image records")

	tracksCmd.AddCommand(listCmd, showCmd, exportCmd)
	return tracksCmd
}

func addFilterFlags(cmd *cobra.Command, req *ipc.TracksListRequest) {
	cmd.Flags().StringVar(&req.Start, "start", "", "Earliest capture date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&req.End, "end", "", "Latest capture date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&req.BBox, "bbox", "", "Bounding box minLon,minLat,maxLon,maxLat")
	cmd.Flags().StringVar(&req.Order, "order", "", "Sort by capture date: asc or desc")
}

func imagesPathFor(tracksPath string) string {
	ext := filepath.Ext(tracksPath)
	return strings.TrimSuffix(tracksPath, ext) + "-images" + ext
}

func trackRows(list []api.Track) [][]string {
	rows := make([][]string, 0, len(list))
	for _, track := range list {
		rows = append(rows, []string{
			strconv.FormatInt(track.ID, 10),
			truncate(track.Name, 40),
			captureDay(track.CaptureDate),
			strconv.Itoa(track.PointCount),
			formatMeters(track.LengthMeters),
			yesNo(track.HasImages),
		})
	}
	return rows
}

func captureDay(value string) string {
	if len(value) >= len("2006-01-02") {
		return value[:len("2006-01-02")]
	}
	if value == "" {
		return "-"
	}
	return value
}

func renderTrack(cmd *cobra.Command, track api.Track, images []api.Image) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"ID", strconv.FormatInt(track.ID, 10)},
		{"Name", track.Name},
		{"File", track.FilePath},
		{"Captured", track.CaptureDate},
		{"Imported", relativeTime(track.ImportDate)},
		{"Points", strconv.Itoa(track.PointCount)},
		{"Length", formatMeters(track.LengthMeters)},
		{"Bounds", fmt.Sprintf("%.5f,%.5f,%.5f,%.5f", track.BBox[0], track.BBox[1], track.BBox[2], track.BBox[3])},
		{"Images", strconv.Itoa(len(images))},
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
	if len(images) == 0 {
		return
	}
	imageRows := make([][]string, 0, len(images))
	for _, image := range images {
		heading := "-"
		if image.Heading != nil {
			heading = strconv.FormatFloat(*image.Heading, 'f', 1, 64)
		}
		imageRows = append(imageRows, []string{
			strconv.Itoa(image.SequenceNumber),
			image.CaptureDate,
			fmt.Sprintf("%.6f,%.6f", image.Longitude, image.Latitude),
			heading,
			filepath.Base(image.FilePath),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Seq", "Captured", "Position", "Heading", "File"},
		imageRows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
