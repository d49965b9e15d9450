package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/zombor/receipt-matcher/internal/matching"
	"github.com/zombor/receipt-matcher/internal/packaging"
	"github.com/zombor/receipt-matcher/internal/statement"
)

// maxBatchSize bounds a whole upload; a batch carries many phone photos
const maxBatchSize = int64(200 << 20)

// corsError writes a plain-text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// parseUpload parses the multipart form, answering the request on failure
func parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = fmt.Sprintf("Upload is too large. Maximum size is %dMB.", maxBatchSize>>20)
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return false
	}
	return true
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// readStatement returns the uploaded statement's name and bytes
func readStatement(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	files := r.MultipartForm.File["statement"]
	if len(files) == 0 {
		jsonError(w, "No statement was selected. Please choose a CSV file to upload.", http.StatusBadRequest)
		return "", nil, false
	}

	data, err := readFormFile(files[0])
	if err != nil {
		slog.Error("Error reading statement", "error", err, "filename", files[0].Filename)
		jsonError(w, "Error reading statement. Please try again.", http.StatusInternalServerError)
		return "", nil, false
	}
	return files[0].Filename, data, true
}

// handleDetectColumns returns the statement headers and detected columns so
// the page can offer a column choice
func (s *Server) handleDetectColumns(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	_, data, ok := readStatement(w, r)
	if !ok {
		return
	}

	detection, err := s.service.DetectColumns(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, detection)
}

// requestFromForm builds a batch request from the parsed multipart form
func requestFromForm(r *http.Request) (Request, error) {
	mode, err := matching.ParseMode(r.FormValue("mode"))
	if err != nil {
		return Request{}, err
	}

	options := matching.DefaultOptions()
	options.Mode = mode
	if v := r.FormValue("min_score"); v != "" {
		minScore, err := strconv.Atoi(v)
		if err != nil || minScore < 0 || minScore > 100 {
			return Request{}, fmt.Errorf("min_score must be a number from 0 to 100")
		}
		options.MinScore = minScore
	}

	req := Request{
		Columns: statement.Columns{
			Vendor: r.FormValue("vendor_column"),
			Number: r.FormValue("number_column"),
			Amount: r.FormValue("amount_column"),
		},
		Options: options,
	}

	for _, header := range r.MultipartForm.File["receipts"] {
		data, err := readFormFile(header)
		if err != nil {
			return Request{}, fmt.Errorf("reading %s: %w", header.Filename, err)
		}
		req.Receipts = append(req.Receipts, Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return req, nil
}

// handleCreateBatch matches uploaded receipts against an uploaded statement
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	name, data, ok := readStatement(w, r)
	if !ok {
		return
	}

	req, err := requestFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Receipts) == 0 {
		jsonError(w, "No receipts were selected. Please choose one or more files to upload.", http.StatusBadRequest)
		return
	}
	req.StatementName = name
	req.Statement = data

	b, err := s.service.Run(r.Context(), req)
	if err != nil {
		if IsStatementError(err) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Error processing batch", "statement", name, "error", err)
		jsonError(w, "Error processing receipts", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	writeJSON(w, http.StatusCreated, b)
}

// handleListBatches returns a list of all batches
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if batches == nil {
		batches = []*Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleGetBatch returns a single batch
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, err := s.service.GetBatch(id)
	if err != nil {
		s.notFoundOrError(w, err, "Batch not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDownloadArchive returns the zip archive of a batch
func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.service.GetArchive(id)
	if err != nil {
		s.notFoundOrError(w, err, "Archive not found")
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", packaging.ArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleDeleteBatch deletes a batch and its archive
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteBatch(id); err != nil {
		s.notFoundOrError(w, err, "Error deleting batch")
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notFoundOrError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		corsError(w, message, http.StatusNotFound)
		return
	}
	slog.Error(message, "error", err)
	corsError(w, "Internal server error", http.StatusInternalServerError)
}
