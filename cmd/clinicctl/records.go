package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"clinic-records/client"
	"clinic-records/handlers"
	"clinic-records/schema"

	"github.com/spf13/cobra"
)

func (a *app) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record", "r"},
		Short:   "List, inspect and change patient records",
	}
	cmd.AddCommand(
		a.recordsListCmd(),
		a.recordsGetCmd(),
		a.recordsAddCmd(),
		a.recordsEditCmd(),
		a.recordsDeleteCmd(),
		a.recordsSuggestCmd(),
	)
	return cmd
}

func (a *app) recordsListCmd() *cobra.Command {
	var (
		page   int
		search string
		desc   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := schema.ListRecordsInput{PageNumber: page, SearchTerm: search, SortType: schema.SortAsc}
			if desc {
				in.SortType = schema.SortDesc
			}
			out, err := a.client.ListRecords(cmd.Context(), in)
			if err != nil {
				return report(cmd, client.OpQueryRecords, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, r := range out.Records {
				fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d\n", page, out.PageCount)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive name filter")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort names Z to A")
	return cmd
}

func (a *app) recordsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a record and its treatment entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client.GetRecord(cmd.Context(), args[0])
			if err != nil {
				return report(cmd, client.OpQueryRecords, err)
			}
			if detail == nil {
				return fmt.Errorf("record %s not found", args[0])
			}
			return printDetail(cmd, detail)
		},
	}
}

func (a *app) recordsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in schema.Record
			if err := fieldValues(cmd.Flags(), &in, nil); err != nil {
				return report(cmd, client.OpAddRecord, err)
			}
			rec, err := a.client.AddRecord(cmd.Context(), in)
			if err != nil {
				return report(cmd, client.OpAddRecord, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return report(cmd, client.OpAddRecord, nil)
		},
	}
	fieldFlags(cmd.Flags(), schema.Record{})
	return cmd
}

func (a *app) recordsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace every field of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in schema.RecordEdit
			if err := fieldValues(cmd.Flags(), &in, map[string]string{"id": args[0]}); err != nil {
				return report(cmd, client.OpEditRecord, err)
			}
			_, err := a.client.EditRecord(cmd.Context(), in)
			return report(cmd, client.OpEditRecord, err)
		},
	}
	fieldFlags(cmd.Flags(), schema.RecordEdit{}, "id")
	return cmd
}

func (a *app) recordsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record that has no treatment entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.client.DeleteRecord(cmd.Context(), args[0])
			return report(cmd, client.OpDeleteRecord, err)
		},
	}
}

func (a *app) recordsSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a patient name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.client.Suggest(cmd.Context(), args[0])
			if err != nil {
				return report(cmd, client.OpQueryRecords, err)
			}
			for _, s := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.Name)
			}
			return nil
		},
	}
}

func printDetail(cmd *cobra.Command, d *handlers.RecordDetail) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", d.ID},
		{"Name", d.Name},
		{"Age", fmt.Sprint(d.Age)},
		{"Birthday", time.Time(d.Birthday).Format(schema.DateLayout)},
		{"Gender", d.Gender},
		{"Status", d.Status},
		{"Address", d.Address},
		{"Telephone", d.Telephone},
		{"Occupation", d.Occupation},
		{"Complaint", d.Complaint},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s:\t%s\n", r[0], r[1])
	}
	if len(d.Entries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ENTRY\tDATE\tTOOTH\tSERVICE\tFEES")
		for _, e := range d.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.ID, time.Time(e.Date).Format(schema.DateLayout), e.Tooth, e.Service, e.Fees.StringFixed(2))
		}
	}
	return w.Flush()
}
