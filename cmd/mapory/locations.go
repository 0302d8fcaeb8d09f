package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"mapory/internal/app"
	"mapory/internal/mapory"
	"mapory/internal/model"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Record a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := app.LocationInput{Title: args[0]}
		readLocationFlags(cmd, &in)

		a, err := newApp(cmd, "AddLocation")
		if err != nil {
			return err
		}
		defer a.Close()

		loc, err := a.AddLocation(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("Added location %s\n", loc.ID)
		printLocation(os.Stdout, loc)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "UpdateLocation")
		if err != nil {
			return err
		}
		defer a.Close()

		loc, err := a.GetLocation(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		in := app.LocationInput{
			ID:          loc.ID,
			Title:       loc.Title,
			Description: loc.Description,
			Date:        loc.Date,
			LatLng:      loc.LatLng,
			Category:    loc.Category.String(),
		}
		if cmd.Flags().Changed("title") {
			in.Title, _ = cmd.Flags().GetString("title")
		}
		readLocationFlags(cmd, &in)
		in.RemoveMedia, _ = cmd.Flags().GetStringArray("remove")

		updated, err := a.UpdateLocation(cmd.Context(), in)
		if err != nil {
			return err
		}
		printLocation(os.Stdout, updated)
		return nil
	},
}

// readLocationFlags copies the location flags that were set on cmd into in.
func readLocationFlags(cmd *cobra.Command, in *app.LocationInput) {
	flags := cmd.Flags()
	if flags.Changed("description") {
		in.Description, _ = flags.GetString("description")
	}
	if flags.Changed("date") {
		in.Date, _ = flags.GetString("date")
	}
	if flags.Changed("category") {
		in.Category, _ = flags.GetString("category")
	}
	if flags.Changed("lat") {
		in.LatLng.Latitude, _ = flags.GetFloat64("lat")
	}
	if flags.Changed("lng") {
		in.LatLng.Longitude, _ = flags.GetFloat64("lng")
	}
	in.Images, _ = flags.GetStringArray("image")
	in.Videos, _ = flags.GetStringArray("video")
	in.Audios, _ = flags.GetStringArray("audio")
	in.Notes, _ = flags.GetStringArray("note")
}

var showCmd = &cobra.Command{
	Use:   "show [ID]",
	Short: "Show a memory, or the latest one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "GetLocation")
		if err != nil {
			return err
		}
		defer a.Close()

		var loc *model.Location
		if len(args) == 1 {
			loc, err = a.GetLocation(cmd.Context(), args[0])
		} else {
			loc, err = a.LatestLocation(cmd.Context())
		}
		if err != nil {
			return err
		}
		if loc == nil {
			fmt.Println("No locations yet.")
			return nil
		}
		printLocation(os.Stdout, loc)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a memory and its media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "DeleteLocation")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteLocation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted location %s\n", args[0])
		return nil
	},
}

// list command: the paged feed
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Browse memories page by page",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		sortBy, _ := flags.GetString("sort")
		from, _ := flags.GetString("from")
		to, _ := flags.GetString("to")
		search, _ := flags.GetString("search")
		pages, _ := flags.GetInt("pages")

		a, err := newApp(cmd, "Feed")
		if err != nil {
			return err
		}
		defer a.Close()

		feed, err := a.Feed()
		if err != nil {
			return err
		}
		feed.UpdateSortOrder(mapory.ParseSortOrder(sortBy))
		if err := feed.UpdateDateFilter(from, to); err != nil {
			return err
		}
		if categories := categoryFlag(cmd); categories != 0 {
			feed.UpdateFilters(categories)
		}

		ctx := cmd.Context()
		if search != "" {
			feed.Search(ctx, search)
		} else {
			feed.FetchFirstPage(ctx)
			for i := 1; i < pages && feed.State().CanLoadMore; i++ {
				feed.LoadNextPage(ctx)
			}
		}

		return printFeed(os.Stdout, feed.State())
	},
}

func printFeed(w io.Writer, st mapory.FeedState) error {
	switch st.Status {
	case mapory.FeedFailed:
		return fmt.Errorf("loading feed: %s", st.Err)
	case mapory.FeedEmpty:
		fmt.Fprintln(w, "No locations found.")
		return nil
	}
	for _, loc := range st.Locations {
		printSummary(w, loc)
	}
	if st.CanLoadMore {
		fmt.Fprintln(w, "... more available (use --pages)")
	}
	return nil
}

// map command: every matching memory with its position
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "List every memory with its position",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := mapFilterFlags(cmd)

		a, err := newApp(cmd, "ListLocations")
		if err != nil {
			return err
		}
		defer a.Close()

		locs, err := a.ListLocations(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(locs) == 0 {
			fmt.Println("No locations found.")
			return nil
		}
		for _, loc := range locs {
			pos := "-"
			if loc.HasPosition() {
				pos = loc.LatLng.String()
			}
			fmt.Printf("%-24s %s\n", pos, summaryLine(loc))
		}
		return nil
	},
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List memories by distance from a position",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := mapFilterFlags(cmd)
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius")

		a, err := newApp(cmd, "NearbyLocations")
		if err != nil {
			return err
		}
		defer a.Close()

		near, err := a.NearbyLocations(cmd.Context(), filter, model.LatLng{Latitude: lat, Longitude: lng}, radius)
		if err != nil {
			return err
		}
		if len(near) == 0 {
			fmt.Println("No locations found.")
			return nil
		}
		for _, n := range near {
			fmt.Printf("%10s  %s\n", formatDistance(n.DistanceMeters), summaryLine(n.Location))
		}
		return nil
	},
}

func formatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0f m", m)
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

// media command
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Access stored media",
}

var mediaGetCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Download a media object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "ReadMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.MediaEncrypted() {
			passphrase, err := readPassphrase()
			if err != nil {
				return err
			}
			if err := a.UnlockMedia(passphrase); err != nil {
				return err
			}
		}

		if out == "" || out == "-" {
			return a.ReadMedia(cmd.Context(), args[0], os.Stdout)
		}
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		if err := a.ReadMedia(cmd.Context(), args[0], f); err != nil {
			f.Close()
			os.Remove(out)
			return err
		}
		return f.Close()
	},
}

func categoryFlag(cmd *cobra.Command) model.CategorySet {
	names, _ := cmd.Flags().GetStringSlice("category")
	var set model.CategorySet
	for _, n := range names {
		set = set.With(model.ParseCategory(n))
	}
	return set
}

func mapFilterFlags(cmd *cobra.Command) mapory.MapFilter {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	search, _ := cmd.Flags().GetString("search")
	return mapory.MapFilter{
		Categories: categoryFlag(cmd),
		Dates:      mapory.DateRange{Start: from, End: to},
		SearchTerm: search,
	}
}

func summaryLine(loc *model.Location) string {
	return fmt.Sprintf("%-14s %s  %-20s %s", loc.ID, loc.Date, loc.Category, loc.Title)
}

func printSummary(w io.Writer, loc *model.Location) {
	fmt.Fprintln(w, summaryLine(loc))
}

func printLocation(w io.Writer, loc *model.Location) {
	fmt.Fprintf(w, "ID:        %s\n", loc.ID)
	fmt.Fprintf(w, "Title:     %s\n", loc.Title)
	if loc.Description != "" {
		fmt.Fprintf(w, "About:     %s\n", loc.Description)
	}
	fmt.Fprintf(w, "Date:      %s\n", loc.Date)
	fmt.Fprintf(w, "Category:  %s\n", loc.Category)
	if loc.HasPosition() {
		fmt.Fprintf(w, "Position:  %s\n", loc.LatLng)
	}
	if addr := loc.LocationDetails.Address; addr != "" {
		fmt.Fprintf(w, "Address:   %s\n", addr)
	}
	printMedia(w, "Images", loc.Images)
	printMedia(w, "Videos", loc.Videos)
	printMedia(w, "Audios", loc.Audios)
	printMedia(w, "Notes", loc.Notes)
}

func printMedia(w io.Writer, label string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(w, "%-10s %s\n", label+":", strings.Join(urls, "\n           "))
}

func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("description", "d", "", "Description")
	cmd.Flags().String("date", "", "Date as dd/mm/yyyy (default today)")
	cmd.Flags().StringP("category", "c", "", "Category, e.g. \"Food & Drink\" or food-and-drink")
	cmd.Flags().Float64("lat", 0, "Latitude")
	cmd.Flags().Float64("lng", 0, "Longitude")
	cmd.Flags().StringArray("image", nil, "Image file to attach (repeatable)")
	cmd.Flags().StringArray("video", nil, "Video file to attach (repeatable)")
	cmd.Flags().StringArray("audio", nil, "Audio file to attach (repeatable)")
	cmd.Flags().StringArray("note", nil, "Note file to attach (repeatable)")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "Only these categories (comma separated)")
	cmd.Flags().String("from", "", "Earliest date, dd/mm/yyyy")
	cmd.Flags().String("to", "", "Latest date, dd/mm/yyyy")
	cmd.Flags().String("search", "", "Title contains")
}

func init() {
	addLocationFlags(addCmd)
	addLocationFlags(editCmd)
	editCmd.Flags().String("title", "", "Title")
	editCmd.Flags().StringArray("remove", nil, "Media URL to remove (repeatable)")

	addFilterFlags(listCmd)
	listCmd.Flags().String("sort", "id", "Sort by id or date")
	listCmd.Flags().IntP("pages", "n", 1, "Number of pages to load")

	addFilterFlags(mapCmd)
	addFilterFlags(nearbyCmd)
	nearbyCmd.Flags().Float64("lat", 0, "Latitude (default last known position)")
	nearbyCmd.Flags().Float64("lng", 0, "Longitude (default last known position)")
	nearbyCmd.Flags().Float64("radius", 0, "Only within this many meters")

	mediaGetCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	mediaCmd.AddCommand(mediaGetCmd)

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(mediaCmd)
}
