package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"mindsage/internal/users"
)

func newMeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your profile and preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, http.MethodGet, "/api/me", nil)
		},
	}
}

func newPrefsCmd(a *app) *cobra.Command {
	var name, mode, avatar string

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Update your display name, scripture mode or avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req users.UpdatePreferencesRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("mode") {
				req.PreferredMode = &mode
			}
			if flags.Changed("avatar") {
				req.AvatarID = &avatar
			}
			if req.Name == nil && req.PreferredMode == nil && req.AvatarID == nil {
				return errors.New("nothing to update: pass --name, --mode or --avatar")
			}
			return a.call(cmd, http.MethodPatch, "/api/me/preferences", req)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&mode, "mode", "", "gita, quran, bible or none")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar id, see `mindsage avatars`")
	return cmd
}

func newAvatarsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "avatars",
		Short: "List the avatars you can pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, http.MethodGet, "/api/avatars", nil)
		},
	}
}
