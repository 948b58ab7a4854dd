package gateway

import (
	"context"
	"sync"
)

type SpreadsheetsMock struct {
	lock sync.Mutex

	Rows map[string][][]string
}

func (s *SpreadsheetsMock) AppendRow(ctx context.Context, spreadsheetName string, row []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.Rows == nil {
		s.Rows = make(map[string][][]string)
	}

	s.Rows[spreadsheetName] = append(s.Rows[spreadsheetName], row)

	return nil
}

// SheetRows returns a copy of the rows appended to spreadsheetName.
func (s *SpreadsheetsMock) SheetRows(spreadsheetName string) [][]string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([][]string(nil), s.Rows[spreadsheetName]...)
}
