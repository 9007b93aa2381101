package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

type listOptions struct {
	search    string
	category  string
	min       []string
	max       []string
	sort      string
	direction string
	page      int
	pageSize  int
	format    string
}

func newListCmd() *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list [kind]",
		Short: "Print one page of a derived view",
		Long: `Derives a filtered, sorted view of one collection and prints the requested page.

Example:
  grimoire list spells --min level=2 --search ice --sort name --dir desc`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.bootstrap(cmd.Context()); err != nil {
				return err
			}
			res, ok := a.catalog().Resource(domain.Kind(args[0]))
			if !ok {
				return fmt.Errorf("unknown kind %q (want one of %s)", args[0], strings.Join(kindNames(), ", "))
			}
			return runList(cmd.OutOrStdout(), res, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.search, "search", "", "Case-insensitive substring matched against searchable fields")
	flags.StringVar(&opts.category, "category", "", "Exact category tag, or \"all\"")
	flags.StringArrayVar(&opts.min, "min", nil, "Inclusive lower bound as field=value (repeatable)")
	flags.StringArrayVar(&opts.max, "max", nil, "Inclusive upper bound as field=value (repeatable)")
	flags.StringVar(&opts.sort, "sort", "", "Sort field")
	flags.StringVar(&opts.direction, "dir", "asc", "Sort direction: asc or desc")
	flags.IntVar(&opts.page, "page", 1, "Page number")
	flags.IntVar(&opts.pageSize, "page-size", core.DefaultPageSize, "Records per page")
	flags.StringVar(&opts.format, "format", "table", "Output format: table, json or csv")
	return cmd
}

func kindNames() []string {
	kinds := domain.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func (o *listOptions) values() (url.Values, error) {
	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set(core.ParamSearch, o.search)
	set(core.ParamCategory, o.category)
	set(core.ParamSort, o.sort)
	set(core.ParamDirection, o.direction)
	for prefix, bounds := range map[string][]string{core.ParamMinPrefix: o.min, core.ParamMaxPrefix: o.max} {
		for _, raw := range bounds {
			field, value, ok := strings.Cut(raw, "=")
			if !ok || strings.TrimSpace(field) == "" {
				return nil, fmt.Errorf("bound %q must look like field=value", raw)
			}
			values.Set(prefix+strings.TrimSpace(field), strings.TrimSpace(value))
		}
	}
	return values, nil
}

func runList(w io.Writer, res core.Resource, opts *listOptions) error {
	values, err := opts.values()
	if err != nil {
		return err
	}
	criteria, err := res.ParseCriteria(values)
	if err != nil {
		return err
	}
	table, err := res.Table(criteria)
	if err != nil {
		return err
	}
	rows := core.Paginate(table.Rows, opts.page, opts.pageSize)

	switch strings.ToLower(opts.format) {
	case "json":
		page := core.Map(rows, func(r core.TableRow) any { return r.Record })
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(table.Columns); err != nil {
			return err
		}
		for _, row := range rows.Items {
			if err := cw.Write(row.Cells); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(table.Columns, "\t")))
		for _, row := range rows.Items {
			fmt.Fprintln(tw, strings.Join(row.Cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "page %d of %d (%d records)\n", rows.Number, rows.TotalPages, rows.TotalItems)
		if rows.Clamped {
			fmt.Fprintf(w, "requested page %d is out of range; showing page %d\n", rows.Requested, rows.Number)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}
}
