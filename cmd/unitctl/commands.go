package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/content-unit/pkg/contentunit"
)

// NewCreateCommand creates the create command
func NewCreateCommand(c *cli) *cobra.Command {
	var body, status, owner, contentType string

	cmd := &cobra.Command{
		Use:   "create <title> [file]",
		Short: "Create a unit, uploading file as its asset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := contentunit.ParseStatus(status)
			if err != nil {
				return err
			}
			in := contentunit.CreateUnitInput{
				Title:       args[0],
				Body:        body,
				Status:      parsed,
				OwnerID:     owner,
				ContentType: contentType,
			}
			if len(args) == 2 {
				if in.AssetBytes, err = readFile(args[1]); err != nil {
					return err
				}
			}

			res, err := c.service.CreateUnit(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printResult(res)
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "unit body text")
	cmd.Flags().StringVar(&status, "status", "", "active or inactive (default active)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&contentType, "content-type", "", "asset content type (detected when empty)")

	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand(c *cli) *cobra.Command {
	var title, body, status, file, contentType string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a unit or replace its asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := contentunit.UpdateUnitInput{ContentType: contentType}
			if cmd.Flags().Changed("title") {
				in.Title = &title
			}
			if cmd.Flags().Changed("body") {
				in.Body = &body
			}
			if cmd.Flags().Changed("status") {
				s := contentunit.Status(status)
				in.Status = &s
			}
			if file != "" {
				var err error
				if in.AssetBytes, err = readFile(file); err != nil {
					return err
				}
			}

			res, err := c.service.UpdateUnit(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return c.printResult(res)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title (the id is unchanged)")
	cmd.Flags().StringVar(&body, "body", "", "new body text")
	cmd.Flags().StringVar(&status, "status", "", "active or inactive")
	cmd.Flags().StringVar(&file, "file", "", "replacement asset file")
	cmd.Flags().StringVar(&contentType, "content-type", "", "asset content type (detected when empty)")

	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a unit and its asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.service.DeleteUnit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.json {
				return c.printResult(res)
			}
			if res.Cleanup != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", res.Cleanup)
			}
			fmt.Fprintf(c.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

// NewGetCommand creates the get command
func NewGetCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := c.service.GetUnit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printResult(&contentunit.Result{Unit: unit})
		},
	}
}

// NewListCommand creates the list command
func NewListCommand(c *cli) *cobra.Command {
	var status, owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List units, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := contentunit.ListFilter{Status: contentunit.Status(status), OwnerID: owner}
			if filter.Status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			var units []*contentunit.Unit
			for unit, err := range c.service.ListUnits(cmd.Context(), filter) {
				if err != nil {
					return err
				}
				units = append(units, unit)
			}

			if c.json {
				return c.printJSON(units)
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tOWNER\tASSET\tUPDATED")
			for _, u := range units {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Status, u.OwnerID, u.AssetRef, u.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only units with this status")
	cmd.Flags().StringVar(&owner, "owner", "", "only units of this owner")

	return cmd
}

// NewPreviewCommand creates the preview command
func NewPreviewCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id>",
		Short: "Print the preview URL of a unit's asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := c.service.PreviewURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, url)
			return nil
		},
	}
}

// resultJSON is the --json form of a workflow result.
type resultJSON struct {
	*contentunit.Unit
	CleanupWarning string `json:"cleanup_warning,omitempty"`
}

func (c *cli) printResult(res *contentunit.Result) error {
	if c.json {
		out := resultJSON{Unit: res.Unit}
		if res.Cleanup != nil {
			out.CleanupWarning = res.Cleanup.Error()
		}
		return c.printJSON(out)
	}
	u := res.Unit
	fmt.Fprintf(c.out, "ID:      %s\n", u.ID)
	fmt.Fprintf(c.out, "Title:   %s\n", u.Title)
	fmt.Fprintf(c.out, "Status:  %s\n", u.Status)
	if u.OwnerID != "" {
		fmt.Fprintf(c.out, "Owner:   %s\n", u.OwnerID)
	}
	if u.HasAsset() {
		fmt.Fprintf(c.out, "Asset:   %s\n", u.AssetRef)
	}
	fmt.Fprintf(c.out, "Updated: %s\n", u.UpdatedAt.Format("2006-01-02 15:04:05"))
	if res.Cleanup != nil {
		fmt.Fprintf(c.out, "Warning: %v\n", res.Cleanup)
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset file: %w", err)
	}
	return data, nil
}
