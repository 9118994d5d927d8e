package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/levelup-api/internal/minigame"
)

const resultsSheet = "Resultados"

// ResultsExport is a generated workbook ready to download.
type ResultsExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

var resultsHeader = []interface{}{"Estudiante", "Intento", "Nota", "XP", "Finalizado", "Correctas", "Ítems"}

// ExportResults writes one row per finalized submission of the activity.
func (s *teacherActivityService) ExportResults(ctx context.Context, activityID uint, actor ActivityActor) (ResultsExport, error) {
	ctx, span := s.tracer.Start(ctx, "teacher.export_results", trace.WithAttributes(attribute.Int("activity.id", int(activityID))))
	defer span.End()

	activity, err := s.load(ctx, activityID, actor, false, true)
	if err != nil {
		return ResultsExport{}, err
	}
	submissions, err := s.submissions.ListFinalizedByActivity(ctx, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ResultsExport{}, err
	}

	scored := 0
	for _, item := range activity.Items {
		if item.Type == minigame.ItemTypeGame {
			scored++
		}
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", resultsSheet); err != nil {
		return ResultsExport{}, err
	}
	if err := file.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return ResultsExport{}, err
	}
	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = file.SetCellStyle(resultsSheet, "A1", "G1", style)
	}
	_ = file.SetColWidth(resultsSheet, "A", "A", 32)
	_ = file.SetColWidth(resultsSheet, "E", "E", 20)

	for i, submission := range submissions {
		correct := 0
		for _, answer := range submission.Answers {
			if answer.Correct {
				correct++
			}
		}

		var grade interface{}
		if submission.Grade != nil {
			grade = *submission.Grade
		}
		var finished interface{}
		if submission.SubmittedAt != nil {
			finished = submission.SubmittedAt.In(time.Local).Format("2006-01-02 15:04")
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return ResultsExport{}, err
		}
		row := []interface{}{
			submission.Student.FullName(),
			submission.Attempt,
			grade,
			submission.XPEarned,
			finished,
			correct,
			scored,
		}
		if err := file.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return ResultsExport{}, err
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ResultsExport{}, err
	}

	span.SetAttributes(attribute.Int("export.rows", len(submissions)))
	s.audit(ctx, actor, "activity.results_exported", "activity", activityID, map[string]interface{}{"rows": len(submissions)})

	return ResultsExport{
		FileName:    fmt.Sprintf("resultados_%s.xlsx", slugify(activity.Title)),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     buf.Bytes(),
	}, nil
}
