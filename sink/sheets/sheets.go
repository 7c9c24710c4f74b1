// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docindex/sink"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInputUserEntered = "USER_ENTERED"

// Config holds settings for the Google Sheets sink.
type Config struct {
	// SpreadsheetID identifies the target spreadsheet.
	SpreadsheetID string

	// CredentialsFile is the path to a service account JSON key.
	CredentialsFile string

	// Header is the column header row. Its length fixes the row width.
	Header []string
}

// Sink appends extracted rows to the first sheet of a spreadsheet.
type Sink struct {
	service       *sheets.Service
	spreadsheetID string
	header        []string
	logger        *slog.Logger
}

var _ sink.RowSink = (*Sink)(nil)

// New creates a sheets sink. The connection is established immediately;
// the header is written lazily by Init.
func New(ctx context.Context, config Config) (*Sink, error) {
	if config.SpreadsheetID == "" {
		return nil, errors.New("sheets: SpreadsheetID is required")
	}
	if len(config.Header) == 0 {
		return nil, errors.New("sheets: Header is required")
	}

	service, err := sheets.NewService(ctx,
		option.WithCredentialsFile(config.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: creating service: %w", err)
	}

	return &Sink{
		service:       service,
		spreadsheetID: config.SpreadsheetID,
		header:        config.Header,
		logger:        slog.Default().With("component", "sheets-sink"),
	}, nil
}

// Init writes the header row if the sheet is empty.
func (s *Sink) Init(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, "A1:1").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: reading header: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	header := make([]interface{}, len(s.header))
	for i, col := range s.header {
		header[i] = col
	}

	_, err = s.service.Spreadsheets.Values.
		Update(s.spreadsheetID, "A1", &sheets.ValueRange{Values: [][]interface{}{header}}).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: writing header: %w", err)
	}

	s.logger.Info("wrote header row", "spreadsheet", s.spreadsheetID)
	return nil
}

// AppendRow appends one row, padded or truncated to the header width.
func (s *Sink) AppendRow(ctx context.Context, row []string) error {
	width := len(s.header)
	values := make([]interface{}, width)
	for i := 0; i < width; i++ {
		if i < len(row) {
			values[i] = row[i]
		} else {
			values[i] = ""
		}
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, "A1", &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: appending row: %w", err)
	}
	return nil
}
