package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mindsage/internal/therapists"
)

func newTherapistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "therapists",
		Short: "Browse and maintain the therapist directory",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active therapists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.call(cmd, http.MethodGet, "/api/therapists", nil)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one therapist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, http.MethodGet, therapistPath(args[0]), nil)
			},
		},
		newTherapistWriteCmd(a, "create", "Add a therapist from a YAML or JSON file (admin)"),
		newTherapistWriteCmd(a, "update", "Change fields of a therapist from a YAML or JSON file (admin)"),
		newTherapistImageCmd(a),
	)
	return cmd
}

func therapistPath(id string) string {
	return "/api/therapists/" + url.PathEscape(id)
}

func newTherapistWriteCmd(a *app, action, short string) *cobra.Command {
	var file string

	use := action
	args := cobra.NoArgs
	if action == "update" {
		use += " <id>"
		args = cobra.ExactArgs(1)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd, file)
			if err != nil {
				return err
			}
			if action == "update" {
				return a.call(cmd, http.MethodPatch, therapistPath(args[0]), body)
			}
			return a.call(cmd, http.MethodPost, "/api/therapists", body)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "document with the therapist fields, - for stdin")
	return cmd
}

func newTherapistImageCmd(a *app) *cobra.Command {
	var req therapists.ImageUploadRequest

	cmd := &cobra.Command{
		Use:   "image-url <id>",
		Short: "Get a presigned URL for uploading a profile image (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, http.MethodPost, therapistPath(args[0])+"/image-upload-url", req)
		},
	}
	cmd.Flags().StringVar(&req.ContentType, "content-type", "image/jpeg", "MIME type of the image")
	return cmd
}

// readDocument loads a YAML mapping; JSON input works too since it is valid YAML.
func readDocument(cmd *cobra.Command, file string) (map[string]interface{}, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var doc map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is empty", file)
	}
	return doc, nil
}
