// Package seed loads starting data for the mock API from an xlsx workbook.
package seed

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// HelpRequestSheet is the optional sheet holding seeded help requests.
const HelpRequestSheet = "help_requests"

// LoadKnowledge reads question/answer pairs from the first sheet of the
// workbook. Columns are found by header heuristics; rows missing either
// field are skipped.
func LoadKnowledge(path string, log *logger.Logger) ([]types.CreateKnowledge, error) {
	seedLog := log.Component("seed").WithField("path", path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	header := rows[0]
	questionIdx := -1
	answerIdx := -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "question") || l == "q" || strings.Contains(l, "prompt"):
			if questionIdx == -1 {
				questionIdx = i
			}
		case strings.Contains(l, "answer") || strings.Contains(l, "response") || l == "a":
			if answerIdx == -1 {
				answerIdx = i
			}
		}
	}
	// fallback: first two columns
	if questionIdx == -1 && answerIdx == -1 && len(header) >= 2 {
		questionIdx, answerIdx = 0, 1
	}
	if questionIdx == -1 || answerIdx == -1 {
		return nil, fmt.Errorf("sheet %q: no question/answer columns in header %v", sheets[0], header)
	}
	seedLog.WithField("question_idx", questionIdx).WithField("answer_idx", answerIdx).Debug("detected knowledge columns")

	var out []types.CreateKnowledge
	for i, r := range rows {
		if i == 0 {
			continue
		}
		q := cell(r, questionIdx)
		a := cell(r, answerIdx)
		if q == "" || a == "" {
			continue
		}
		out = append(out, types.CreateKnowledge{Question: q, Answer: a})
	}
	seedLog.WithField("entries", len(out)).Info("knowledge seed loaded")
	return out, nil
}

// LoadHelpRequests reads the help_requests sheet when the workbook has one.
// A workbook without it yields no requests and no error.
func LoadHelpRequests(path string, log *logger.Logger) ([]types.HelpRequest, error) {
	seedLog := log.Component("seed").WithField("path", path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(HelpRequestSheet); idx == -1 {
		return nil, nil
	}
	rows, err := f.GetRows(HelpRequestSheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	phoneIdx, nameIdx, questionIdx, contextIdx, statusIdx := -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "phone"):
			phoneIdx = i
		case strings.Contains(l, "name"):
			nameIdx = i
		case strings.Contains(l, "question"):
			questionIdx = i
		case strings.Contains(l, "context") || strings.Contains(l, "note"):
			contextIdx = i
		case strings.Contains(l, "status"):
			statusIdx = i
		}
	}
	if phoneIdx == -1 || questionIdx == -1 {
		return nil, fmt.Errorf("sheet %q: phone and question columns are required", HelpRequestSheet)
	}

	var out []types.HelpRequest
	for i, r := range rows {
		if i == 0 {
			continue
		}
		req := types.HelpRequest{
			CallerPhone: cell(r, phoneIdx),
			Question:    cell(r, questionIdx),
			Status:      parseStatus(cell(r, statusIdx)),
		}
		if req.CallerPhone == "" || req.Question == "" {
			continue
		}
		if name := cell(r, nameIdx); name != "" {
			req.CallerName = &name
		}
		if c := cell(r, contextIdx); c != "" {
			req.Context = &c
		}
		out = append(out, req)
	}
	seedLog.WithField("requests", len(out)).Info("help request seed loaded")
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseStatus(s string) types.HelpRequestStatus {
	switch st := types.HelpRequestStatus(strings.ToLower(s)); st {
	case types.StatusResolved, types.StatusTimeout:
		return st
	default:
		return types.StatusPending
	}
}
