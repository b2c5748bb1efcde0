package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"stockpicks/internal/display"
	"stockpicks/internal/domain"
	"stockpicks/internal/quote"
	"stockpicks/internal/rank"
	"stockpicks/internal/selection"
	"stockpicks/internal/snapshot"
	"stockpicks/pkg/stockpicks"
)

var (
	flagDate   string
	flagFile   string
	flagQuotes bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List every snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cancel, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		var names []string
		if e.client != nil {
			files, err := e.client.Catalog(ctx)
			if err != nil {
				return err
			}
			for _, f := range files {
				names = append(names, f.Name)
			}
		} else if names, err = e.src.Catalog(ctx); err != nil {
			return err
		}

		if flagJSON {
			return e.printJSON(names)
		}
		for _, n := range names {
			fmt.Fprintln(e.out, n)
		}
		fmt.Fprintf(e.out, "%s files\n", display.FormatInt(len(names)))
		return nil
	},
}

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List dates that have snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cancel, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		var dates []string
		if e.client != nil {
			if dates, err = e.client.Dates(ctx); err != nil {
				return err
			}
		} else {
			names, err := e.src.Catalog(ctx)
			if err != nil {
				return err
			}
			dates = snapshot.Dates(names)
		}

		if flagJSON {
			return e.printJSON(dates)
		}
		for _, d := range dates {
			fmt.Fprintln(e.out, d)
		}
		return nil
	},
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List snapshot files for a date, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cancel, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		date := flagDate
		if date == "" {
			date = e.today()
		}
		if date != "" && !snapshot.ValidDate(date) {
			return fmt.Errorf("--date must be YYYY-MM-DD, got %q", date)
		}

		var candidates []selection.Candidate
		if e.client != nil {
			resp, err := e.client.Candidates(ctx, date)
			if err != nil {
				return err
			}
			date = resp.Date
			for _, c := range resp.Candidates {
				candidates = append(candidates, selection.Candidate{Name: c.Name, Label: c.Label})
			}
		} else {
			names, err := e.src.Catalog(ctx)
			if err != nil {
				return err
			}
			candidates = selection.Candidates(snapshot.CandidatesForDate(names, date))
		}

		if flagJSON {
			return e.printJSON(candidates)
		}
		if len(candidates) == 0 {
			fmt.Fprintf(e.out, "no snapshots for %s\n", date)
			return nil
		}
		for i, c := range candidates {
			mark := " "
			if i == 0 {
				mark = "*"
			}
			fmt.Fprintf(e.out, "%s %s  %s\n", mark, c.Label, c.Name)
		}
		return nil
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print ranked picks for a date",
	Long: `Print the ranked picks for a date. The newest snapshot of the day is
used unless --file names another candidate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, cancel, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		date := flagDate
		if date == "" {
			date = e.today()
		}
		if date != "" && !snapshot.ValidDate(date) {
			return fmt.Errorf("--date must be YYYY-MM-DD, got %q", date)
		}

		var (
			file   string
			stocks []domain.RankedStock
		)
		if e.client != nil {
			resp, err := e.client.Picks(ctx, date, flagFile)
			if err != nil {
				return err
			}
			date, file = resp.Date, resp.File
			stocks = fromPicks(resp.Stocks)
		} else {
			names, err := e.src.Catalog(ctx)
			if err != nil {
				return err
			}
			candidates := snapshot.CandidatesForDate(names, date)
			file = flagFile
			if file == "" {
				file = snapshot.DefaultSelection(candidates)
			} else if !slices.Contains(candidates, file) {
				return fmt.Errorf("%s is not a snapshot for %s", file, date)
			}
			if file != "" {
				records, err := e.src.Snapshot(ctx, file)
				if err != nil {
					return err
				}
				stocks = rank.Rank(records)
			}
			if flagQuotes && e.cfg.Quotes.Enabled {
				stocks = quote.Enrich(ctx, quote.NewAlpacaQuoter(e.cfg.Quotes), stocks, e.log)
			}
		}

		if flagJSON {
			if stocks == nil {
				stocks = []domain.RankedStock{}
			}
			return e.printJSON(map[string]any{"date": date, "file": file, "stocks": stocks})
		}
		if file == "" {
			fmt.Fprintf(e.out, "no snapshots for %s\n", date)
			return nil
		}
		fmt.Fprintf(e.out, "%s  (%s)\n", snapshot.Label(file), display.FormatInt(len(stocks))+" picks")
		for i, s := range stocks {
			fmt.Fprintln(e.out, display.Line(i, s))
		}
		return nil
	},
}

func init() {
	candidatesCmd.Flags().StringVar(&flagDate, "date", "", "date YYYY-MM-DD (default today)")
	rankCmd.Flags().StringVar(&flagDate, "date", "", "date YYYY-MM-DD (default today)")
	rankCmd.Flags().StringVar(&flagFile, "file", "", "snapshot file (default newest for the date)")
	rankCmd.Flags().BoolVar(&flagQuotes, "quotes", true, "attach last trade prices when quotes are enabled")

	rootCmd.AddCommand(catalogCmd, datesCmd, candidatesCmd, rankCmd)
}

func fromPicks(picks []stockpicks.Pick) []domain.RankedStock {
	out := make([]domain.RankedStock, len(picks))
	for i, p := range picks {
		out[i] = domain.RankedStock{
			StockRecord: domain.StockRecord{
				CompanyName:           p.CompanyName,
				StockSymbol:           p.StockSymbol,
				CurrentValue:          domain.PriceText(p.CurrentValue),
				AnalystEstimatedPrice: domain.PriceText(p.AnalystEstimatedPrice),
				Summary:               p.Summary,
			},
			CurrentValueNum: p.CurrentValueNum,
			EstimatedPrice:  p.EstimatedPrice,
			PotentialUpside: p.PotentialUpside,
			IsTopPick:       p.IsTopPick,
			LastPrice:       p.LastPrice,
		}
	}
	return out
}
