package main

import (
	"fmt"

	"mapory/internal/model"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your profile and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Profile")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Username:    %s\n", user.Username)
		fmt.Printf("Email:       %s\n", user.Email)
		if user.ProfilePhoto != "" {
			fmt.Printf("Photo:       %s\n", user.ProfilePhoto)
		}
		if !user.LatLng.IsZero() {
			fmt.Printf("Last seen:   %s\n", user.LatLng)
		}
		fmt.Printf("\nMemories:    %d\n", stats.Total)
		fmt.Printf("This month:  %d\n", stats.ThisMonth)
		fmt.Printf("This week:   %d\n", stats.ThisWeek)
		for _, c := range model.AllCategories() {
			if n := stats.ByCategory[c]; n > 0 {
				fmt.Printf("  %-22s %d\n", c, n)
			}
		}
		return nil
	},
}

var profileUsernameCmd = &cobra.Command{
	Use:   "username NAME",
	Short: "Change your display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "UpdateUsername")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.UpdateUsername(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Username updated.")
		return nil
	},
}

var profilePhotoCmd = &cobra.Command{
	Use:   "photo PATH",
	Short: "Upload a profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "UploadProfilePhoto")
		if err != nil {
			return err
		}
		defer a.Close()

		url, err := a.UploadProfilePhoto(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Profile photo stored at %s\n", url)
		return nil
	},
}

var profilePositionCmd = &cobra.Command{
	Use:   "position --lat LAT --lng LNG",
	Short: "Record your current position",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")

		a, err := newApp(cmd, "UpdatePosition")
		if err != nil {
			return err
		}
		defer a.Close()

		pos := model.LatLng{Latitude: lat, Longitude: lng}
		if err := a.UpdatePosition(cmd.Context(), pos); err != nil {
			return err
		}
		fmt.Printf("Position set to %s\n", pos)
		return nil
	},
}

func init() {
	profilePositionCmd.Flags().Float64("lat", 0, "Latitude")
	profilePositionCmd.Flags().Float64("lng", 0, "Longitude")
	profilePositionCmd.MarkFlagRequired("lat")
	profilePositionCmd.MarkFlagRequired("lng")

	profileCmd.AddCommand(profileUsernameCmd)
	profileCmd.AddCommand(profilePhotoCmd)
	profileCmd.AddCommand(profilePositionCmd)
	rootCmd.AddCommand(profileCmd)
}
