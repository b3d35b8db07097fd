package main

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/pkg/models"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		sortBy string
		runs   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded engagements, or the scan runs of one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.engagements(ctx)
			if err != nil {
				return err
			}
			if runs != "" {
				e, err := findEngagement(ctx, repo, runs)
				if err != nil {
					return err
				}
				runRepo, err := a.scanRuns(ctx)
				if err != nil {
					return err
				}
				list, err := runRepo.ListByEngagement(ctx, e.ID)
				if err != nil {
					return err
				}
				return renderRuns(e, list)
			}

			res, err := repo.List(ctx, services.ListOptions{Limit: limit, SortBy: sortBy})
			if err != nil {
				return err
			}
			if len(res.Items) == 0 {
				pterm.Info.Println("no engagements recorded yet")
				return nil
			}
			data := pterm.TableData{{"ID", "Customer", "Created", "Authorized", "Closed", "Directory"}}
			for _, e := range res.Items {
				closed := "-"
				if e.ClosedAt != nil {
					closed = e.ClosedAt.Local().Format(time.DateTime)
				}
				data = append(data, []string{
					shortID(e.ID), e.CustomerName, e.CreatedAt.Local().Format(time.DateTime),
					strconv.FormatBool(e.Authorized), closed, e.OutputDir,
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			pterm.Info.Printfln("showing %d of %d engagement(s)", len(res.Items), res.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum engagements to list")
	cmd.Flags().StringVar(&sortBy, "sort", "created_at", "sort column: created_at, customer_name, slug")
	cmd.Flags().StringVar(&runs, "runs", "", "show scan runs for an engagement (id or customer slug)")
	return cmd
}

func renderRuns(e *models.Engagement, runs []models.ScanRun) error {
	pterm.DefaultSection.Println(e.CustomerName + " scan runs")
	if len(runs) == 0 {
		pterm.Info.Println("no scan runs recorded")
		return nil
	}
	data := pterm.TableData{{"Segment", "Phase", "Status", "Attempts", "Started", "Error"}}
	for _, r := range runs {
		data = append(data, []string{
			r.Segment, r.Phase, string(r.Status), strconv.Itoa(r.Attempts),
			r.StartedAt.Local().Format(time.DateTime), r.ErrorMsg,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
