package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"import_panel/internal/models"
	"import_panel/internal/service"

	"github.com/spf13/cobra"
)

func configsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List import configs from the action API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			svc := service.NewConfigService(newClient(cfg, log))
			list, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printConfigs(os.Stdout, list, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func printConfigs(out io.Writer, list []models.ImportConfig, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tSCHEDULE\tACTIVE")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Platform, c.RunAt, c.IsActive)
	}
	return w.Flush()
}
