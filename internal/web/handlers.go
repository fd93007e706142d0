package web

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tabledock/tabledock/internal/core"
	"github.com/tabledock/tabledock/internal/logging"
	"github.com/tabledock/tabledock/internal/tabular"
)

// handleListTables returns the tables visible in the target database.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.service.ListTables(r.Context())
	if err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, map[string]any{"tables": tables})
}

// handleTableSchema returns the column layout of one existing table.
func (s *Server) handleTableSchema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	schema, err := s.service.TableSchema(r.Context(), table)
	if err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, schemaView(schema))
}

// SchemaResponse is the JSON rendering of a table schema.
type SchemaResponse struct {
	Table   string       `json:"table"`
	Columns []ColumnView `json:"columns"`
}

// ColumnView is one column in a SchemaResponse.
type ColumnView struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func schemaView(schema core.TargetSchema) SchemaResponse {
	resp := SchemaResponse{
		Table:   schema.Table,
		Columns: make([]ColumnView, len(schema.Columns)),
	}
	for i, c := range schema.Columns {
		resp.Columns[i] = ColumnView{
			Name:     c.Name,
			Type:     c.Type.String(),
			Nullable: c.Nullable,
		}
	}
	return resp
}

// handleInfer parses the uploaded file and returns the schema that would be
// created for it, without touching the database.
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	t, opts, cleanup, ok := s.parseUploadForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	writeJSON(w, schemaView(s.service.Infer(opts.Table, t)))
}

// handlePreview runs a dry-run analysis of the upload: schema resolution,
// mapping validation, and a full transform pass, with nothing written.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	t, opts, cleanup, ok := s.parseUploadForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	resp, err := s.service.Analyze(r.Context(), t, opts)
	if err != nil {
		respondError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, resp)
}

// parseUploadForm reads the multipart form shared by the infer, preview, and
// upload endpoints: the "file" part plus the option fields. On failure it has
// already written the error response and returns ok=false.
//
// Form fields:
//
//	table        target table name (required)
//	create_table "true" to create the table when missing (upload only)
//	policy       "null" or "drop", overrides the configured default
//	batch_size   rows per INSERT batch
//	delimiter    CSV field separator, a single character
//	mapping      JSON object of source column -> target column overrides
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) (*tabular.UploadedTable, core.UploadOptions, func(), bool) {
	var opts core.UploadOptions
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Errorf("file too large: %w", err))
		return nil, opts, noop, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file upload")
		return nil, opts, noop, false
	}
	cleanup := func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}

	opts.Table = r.FormValue("table")
	if opts.Table == "" {
		cleanup()
		writeError(w, r, http.StatusBadRequest, "missing table name")
		return nil, opts, noop, false
	}
	opts.CreateTable = r.FormValue("create_table") == "true"

	if v := r.FormValue("policy"); v != "" {
		policy, err := core.ParseInvalidCellPolicy(v)
		if err != nil {
			cleanup()
			writeError(w, r, http.StatusBadRequest, err.Error())
			return nil, opts, noop, false
		}
		opts.Policy = &policy
	}

	if v := r.FormValue("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			cleanup()
			writeError(w, r, http.StatusBadRequest, "batch_size must be a positive integer")
			return nil, opts, noop, false
		}
		opts.BatchSize = n
	}

	if v := r.FormValue("mapping"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.Overrides); err != nil {
			cleanup()
			writeError(w, r, http.StatusBadRequest, "mapping must be a JSON object of source to target columns")
			return nil, opts, noop, false
		}
	}

	var parseOpts tabular.Options
	if v := r.FormValue("delimiter"); v != "" {
		d, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			cleanup()
			writeError(w, r, http.StatusBadRequest, "delimiter must be a single character")
			return nil, opts, noop, false
		}
		parseOpts.Delimiter = d
	}

	t, err := s.loadUpload(header, file, parseOpts)
	if err != nil {
		cleanup()
		respondError(w, r, http.StatusBadRequest, err)
		return nil, opts, noop, false
	}

	logging.FromContext(r.Context()).Debug("file parsed",
		"file", header.Filename,
		"rows", t.RowCount(),
		"columns", len(t.Columns),
	)

	return t, opts, cleanup, true
}

func (s *Server) loadUpload(header *multipart.FileHeader, file multipart.File, opts tabular.Options) (*tabular.UploadedTable, error) {
	return tabular.Load(header.Filename, file, opts)
}
