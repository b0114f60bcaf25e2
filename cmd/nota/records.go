package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nota/internal/backend"
	"nota/internal/cli"
	"nota/internal/core"
	"nota/internal/services"
)

// withService opens the configured backend for the duration of fn.
func (a *app) withService(ctx context.Context, fn func(*services.NotaService) error) (err error) {
	res, err := cli.OpenBackend(ctx, a.logger, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeBackend(res); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(res.Service)
}

func closeBackend(res *backend.BackendResult) error {
	if res.Cleanup == nil {
		return nil
	}
	return res.Cleanup()
}

// fieldFlags are the editable fields shared by add and edit.
type fieldFlags struct {
	date  string
	item  string
	qty   int64
	price string
}

func (f *fieldFlags) register(cmd *cobra.Command, defaultDate string) {
	cmd.Flags().StringVar(&f.date, "date", defaultDate, "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&f.item, "item", "", "item name")
	cmd.Flags().Int64Var(&f.qty, "qty", 1, "quantity")
	cmd.Flags().StringVar(&f.price, "price", "", "unit price in rupiah (15000 or 15.000)")
}

// apply overlays the flags on base. For a new record every flag counts and
// every rule applies; for an edit only the flags that were set, and only the
// values they changed are checked.
func (f *fieldFlags) apply(cmd *cobra.Command, base core.Fields, fresh bool) (core.Fields, error) {
	set := func(name string) bool { return fresh || cmd.Flags().Changed(name) }
	prev := base

	if set("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return core.Fields{}, err
		}
		base.Date = d
	}
	if set("item") {
		base.Item = strings.TrimSpace(f.item)
	}
	if set("qty") {
		base.Quantity = f.qty
	}
	if set("price") {
		p, err := core.ParseAmount(f.price)
		if err != nil {
			return core.Fields{}, fmt.Errorf("price %q: %w", f.price, err)
		}
		base.UnitPrice = p
	}
	validate := base.Validate
	if !fresh {
		validate = func() error { return base.ValidateChanged(prev) }
	}
	if err := validate(); err != nil {
		return core.Fields{}, err
	}
	return base, nil
}

func (a *app) addCmd() *cobra.Command {
	var f fieldFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Tambah nota: append a record",
		Example: `  nota add --item Kopi --qty 2 --price 15000
  nota add --date 2024-03-01 --item "Gula pasir" --qty 1 --price 12.500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := f.apply(cmd, core.Fields{}, true)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *services.NotaService) error {
				rec, index, err := svc.Create(cmd.Context(), fields)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Nota #%d ditambahkan: %s %d x %s = %s",
					index, rec.Item, rec.Quantity, core.FormatRupiah(rec.UnitPrice), core.FormatRupiah(rec.Total))))
				return printTotals(out, svc, &rec.Date)
			})
		},
	}
	f.register(cmd, core.Today().String())
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Kelola nota: list records with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := optionalDate(date)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *services.NotaService) error {
				rows, err := svc.List(filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if filter != nil {
					fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s (%s)", core.FormatDisplayDate(*filter), core.DayName(*filter))))
				} else {
					fmt.Fprintln(out, cli.FormatTitle("Semua nota"))
				}
				if len(rows) == 0 {
					msg := "Tidak ada data untuk tanggal tersebut."
					if svc.Len() == 0 {
						msg = "Tidak ada data untuk ditampilkan."
					}
					fmt.Fprintln(out, cli.FormatInfo(msg))
					return printTotals(out, svc, filter)
				}
				if err := writeRecords(out, rows); err != nil {
					return err
				}
				return printTotals(out, svc, filter)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only show this date (YYYY-MM-DD)")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var f fieldFlags
	cmd := &cobra.Command{
		Use:   "edit <index>",
		Short: "Update the record at a position; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *services.NotaService) error {
				records, err := svc.Records()
				if err != nil {
					return err
				}
				if index >= len(records) {
					return fmt.Errorf("%w: %d not in [0, %d)", core.ErrInvalidIndex, index, len(records))
				}
				fields, err := f.apply(cmd, records[index].Fields(), false)
				if err != nil {
					return err
				}
				rec, err := svc.UpdateAt(cmd.Context(), index, fields)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Nota #%d diperbarui: %s %d x %s = %s",
					index, rec.Item, rec.Quantity, core.FormatRupiah(rec.UnitPrice), core.FormatRupiah(rec.Total))))
				return printTotals(out, svc, &rec.Date)
			})
		},
	}
	f.register(cmd, "")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <index>",
		Short: "Remove the record at a position; later records move up by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *services.NotaService) error {
				if err := svc.DeleteAt(cmd.Context(), index); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Nota #%d dihapus", index)))
				return printTotals(out, svc, nil)
			})
		},
	}
}

func (a *app) totalsCmd() *cobra.Command {
	var (
		date  string
		daily bool
	)
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show the overall total and optionally one day's total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := optionalDate(date)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *services.NotaService) error {
				out := cmd.OutOrStdout()
				if daily {
					days, err := svc.DailyTotals()
					if err != nil {
						return err
					}
					if err := writeDaily(out, days); err != nil {
						return err
					}
				}
				return printTotals(out, svc, filter)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "also show this date's total (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&daily, "daily", false, "print one total per date")
	return cmd
}

func writeRecords(out io.Writer, rows []core.Indexed) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cli.Header("#", "Tanggal", "Hari", "Barang", "Jumlah", "Harga", "Total"), "\t"))
	for _, row := range rows {
		r := row.Record
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Index,
			core.FormatDisplayDate(r.Date),
			core.DayName(r.Date),
			r.Item,
			core.FormatNumber(r.Quantity),
			core.FormatRupiah(r.UnitPrice),
			core.FormatRupiah(r.Total)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return w.Flush()
}

func writeDaily(out io.Writer, days []core.DayTotal) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cli.Header("Tanggal", "Hari", "Nota", "Total"), "\t"))
	for _, d := range days {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			core.FormatDisplayDate(d.Date), d.DayName, d.Count, core.FormatRupiah(d.Total)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return w.Flush()
}

func printTotals(out io.Writer, svc *services.NotaService, date *core.Date) error {
	t, err := svc.Totals(date)
	if err != nil {
		return err
	}
	if t.Day != nil {
		fmt.Fprintf(out, "Total Penjualan %s (%s): %s\n",
			core.FormatDisplayDate(t.Day.Date), t.Day.DayName, cli.TotalStyle.Render(core.FormatRupiah(t.Day.Total)))
	}
	fmt.Fprintf(out, "Total Keseluruhan: %s\n", cli.TotalStyle.Render(core.FormatRupiah(t.Overall)))
	return nil
}

func optionalDate(s string) (*core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidIndex, s)
	}
	return i, nil
}
