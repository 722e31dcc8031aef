package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"mindsage/internal/community"
)

func newCommunityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "community",
		Aliases: []string{"posts"},
		Short:   "Read and write the community feed",
	}
	cmd.AddCommand(
		newCommunityListCmd(a),
		newCommunityPostCmd(a),
		newCommunityReactCmd(a),
		newModerationCmd(a, "hide", "Hide a post from the feed (admin)"),
		newModerationCmd(a, "approve", "Approve a post for the feed (admin)"),
	)
	return cmd
}

func newCommunityListCmd(a *app) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approved posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/community"
			if tag != "" {
				path += "?" + url.Values{"tag": {tag}}.Encode()
			}
			return a.call(cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only posts with this tag")
	return cmd
}

func newCommunityPostCmd(a *app) *cobra.Command {
	var req community.CreatePostRequest
	var title string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Share a post; it appears once a moderator approves it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			return a.call(cmd, http.MethodPost, "/api/community", req)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "optional title")
	cmd.Flags().StringVar(&req.Content, "content", "", "post body")
	cmd.Flags().StringVar(&req.Tag, "tag", "", "topic tag")
	cmd.Flags().BoolVar(&req.IsAnonymous, "anonymous", false, "hide your name on the post")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func newCommunityReactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "react <post-id>",
		Short: "Mark a post as resonating with you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, http.MethodPost, "/api/community/"+url.PathEscape(args[0])+"/react",
				community.ReactRequest{Type: community.ReactionResonated})
		},
	}
}

func newModerationCmd(a *app, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <post-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, http.MethodPatch, "/api/community/"+url.PathEscape(args[0])+"/"+action, nil)
		},
	}
}
