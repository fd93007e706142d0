package core

import (
	"context"
	"errors"
	"time"

	"github.com/tabledock/tabledock/internal/tabular"
)

// PreviewSummary contains the headline counts for upload preview.
type PreviewSummary struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	DroppedRows int `json:"droppedRows"`
	NulledCells int `json:"nulledCells"`
}

// ColumnPreview describes one resolved column for the preview UI.
type ColumnPreview struct {
	Source   string `json:"source,omitempty"` // empty for unmapped target columns
	Target   string `json:"target"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// RowPreview is a sample row rendered for display.
type RowPreview struct {
	Row    int      `json:"row"`
	Values []string `json:"values"` // aligned with the Columns list
}

// PreviewResponse is the complete result of a dry-run analysis.
type PreviewResponse struct {
	Table            string          `json:"table"`
	TableExists      bool            `json:"tableExists"`
	Summary          PreviewSummary  `json:"summary"`
	Columns          []ColumnPreview `json:"columns"`
	UnmappedSources  []string        `json:"unmappedSources,omitempty"`
	SampleRows       []RowPreview    `json:"sampleRows"`
	DroppedSamples   []RowError      `json:"droppedSamples,omitempty"`
	WarningSamples   []CellWarning   `json:"warningSamples,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// Preview sample limits.
const (
	maxSampleRows     = 10
	maxDroppedSamples = 20
	maxWarningSamples = 20
)

// Analyze performs a read-only dry run of an upload: it resolves the schema
// (inferring one when the table does not exist, without creating it),
// validates the mapping, and transforms every row, reporting what the real
// upload would do. Nothing is written to the database.
func (s *Service) Analyze(ctx context.Context, t *tabular.UploadedTable, opts UploadOptions) (*PreviewResponse, error) {
	start := time.Now()

	schema, err := s.store.TableSchema(ctx, opts.Table)
	exists := err == nil
	if err != nil {
		if !errors.Is(err, ErrTableNotFound) {
			return nil, err
		}
		schema = InferSchema(opts.Table, t, s.opts.DateLayouts)
	}

	mapping, err := ResolveMapping(t, schema, opts.Overrides)
	if err != nil {
		return nil, err
	}

	policy := s.opts.Policy
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	transformer := &Transformer{
		Schema:      schema,
		Mapping:     mapping,
		Policy:      policy,
		DateLayouts: s.opts.DateLayouts,
	}
	transformed := transformer.Transform(t)

	resp := &PreviewResponse{
		Table:       opts.Table,
		TableExists: exists,
		Summary: PreviewSummary{
			TotalRows:   t.RowCount(),
			ValidRows:   len(transformed.Rows),
			DroppedRows: len(transformed.Dropped),
			NulledCells: len(transformed.Warnings),
		},
	}

	mapped := make(map[string]bool, len(mapping.Pairs))
	for _, pair := range mapping.Pairs {
		col, _ := schema.Column(pair.Target)
		resp.Columns = append(resp.Columns, ColumnPreview{
			Source:   pair.Source,
			Target:   pair.Target,
			Type:     col.Type.String(),
			Nullable: col.Nullable,
		})
		mapped[pair.Source] = true
	}
	for _, src := range t.Columns {
		if !mapped[src] {
			resp.UnmappedSources = append(resp.UnmappedSources, src)
		}
	}

	for _, row := range transformed.Rows {
		if len(resp.SampleRows) >= maxSampleRows {
			break
		}
		values := make([]string, len(mapping.Pairs))
		for i, pair := range mapping.Pairs {
			values[i] = CleanCell(t.Rows[row.Index][pair.SourceIndex])
		}
		resp.SampleRows = append(resp.SampleRows, RowPreview{Row: row.Index, Values: values})
	}

	resp.DroppedSamples = transformed.Dropped
	if len(resp.DroppedSamples) > maxDroppedSamples {
		resp.DroppedSamples = resp.DroppedSamples[:maxDroppedSamples]
	}
	resp.WarningSamples = transformed.Warnings
	if len(resp.WarningSamples) > maxWarningSamples {
		resp.WarningSamples = resp.WarningSamples[:maxWarningSamples]
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}
