package leaderboardservice

import (
	"context"
	"fmt"
	"io"

	leaderboarddomain "github.com/edelkas/inne-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// GoldReportRow is a level score failing the gold check.
type GoldReportRow struct {
	ScoreID   int64
	Level     string
	Player    string
	Seconds   decimal.Decimal
	RankHS    *int
	RankSR    *int
	Gold      int
	LevelGold int
	Inferred  float64
	Verdict   leaderboarddomain.GoldVerdict
}

// GoldReport lists every failing score.
type GoldReport struct {
	Filter  leaderboarddb.GoldFilter
	Checked int
	Rows    []GoldReportRow
}

// GoldReportHeader names the columns of the text and spreadsheet exports.
var GoldReportHeader = []string{"Level", "Player", "ID", "Current", "HS", "SR", "Gold"}

// frameSeconds renders a frame count in seconds with three decimals.
func frameSeconds(frames int) decimal.Decimal {
	return decimal.NewFromInt(int64(frames)).Div(decimal.NewFromInt(60)).Round(3)
}

// Cells renders the row in GoldReportHeader order.
func (r GoldReportRow) Cells() []string {
	rank := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	return []string{
		r.Level,
		r.Player,
		fmt.Sprint(r.ScoreID),
		r.Seconds.StringFixed(3),
		rank(r.RankHS),
		rank(r.RankSR),
		fmt.Sprintf("%3d / %3d", r.Gold, r.LevelGold),
	}
}

func (s *LeaderboardService) GoldCheck(ctx context.Context, filter leaderboarddb.GoldFilter) (*GoldReport, error) {
	identifier := fmt.Sprintf("mappack:%d", filter.MappackID)
	result, err := withTelemetry(s, ctx, "GoldCheck", identifier, func(ctx context.Context) (results.OperationResult[*GoldReport, error], error) {
		rows, err := s.repo.ListGoldRows(ctx, nil, filter)
		if err != nil {
			return results.OperationResult[*GoldReport, error]{}, err
		}

		report := &GoldReport{Filter: filter, Checked: len(rows)}
		for _, row := range rows {
			verdict := leaderboarddomain.CheckGold(row.ScoreHS, row.ScoreSR, row.Gold, row.LevelGold)
			if !verdict.Failed() {
				continue
			}
			report.Rows = append(report.Rows, GoldReportRow{
				ScoreID:   row.ID,
				Level:     row.LevelName,
				Player:    row.Player,
				Seconds:   frameSeconds(row.ScoreHS),
				RankHS:    row.RankHS,
				RankSR:    row.RankSR,
				Gold:      row.Gold,
				LevelGold: row.LevelGold,
				Inferred:  verdict.Inferred,
				Verdict:   verdict,
			})
		}
		return results.SuccessResult[*GoldReport, error](report), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

// ExportGoldCheck writes the report as a single-sheet workbook.
func (s *LeaderboardService) ExportGoldCheck(ctx context.Context, report *GoldReport, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := make([]any, len(GoldReportHeader))
	for i, h := range GoldReportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("leaderboard.ExportGoldCheck: %w", err)
	}

	for idx, row := range report.Rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return fmt.Errorf("leaderboard.ExportGoldCheck: %w", err)
		}
		seconds, _ := row.Seconds.Float64()
		cells := []any{row.Level, row.Player, row.ScoreID, seconds, rankCell(row.RankHS), rankCell(row.RankSR), row.Gold, row.LevelGold}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("leaderboard.ExportGoldCheck: %w", err)
		}
	}
	if err := f.SetCellValue(sheet, "H1", "Max gold"); err != nil {
		return fmt.Errorf("leaderboard.ExportGoldCheck: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("leaderboard.ExportGoldCheck: %w", err)
	}
	s.logger.InfoContext(ctx, "Gold check exported")
	return nil
}

func rankCell(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}
