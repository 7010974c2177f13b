package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/scanning"
	"github.com/zombor/fridge-chef/internal/session"
)

// ingredientRequest is the body of add and edit ingredient calls
type ingredientRequest struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// confirmRequest is the body of the confirm call
type confirmRequest struct {
	Diets     []string `json:"diets"`
	Allergies []string `json:"allergies"`
	Cuisine   string   `json:"cuisine"`
	Notes     string   `json:"notes"`
	Count     int      `json:"count"`
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeSession writes the session view, or the error when err is set
func (s *Server) writeSession(w http.ResponseWriter, code int, state session.State, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	busy, _ := s.manager.Busy(state.ID)
	writeJSON(w, code, newSessionView(state, busy))
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// pathIndex parses the {index} path segment
func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid index %q", r.PathValue("index"))})
		return 0, false
	}
	return i, true
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleOptions returns the choices offered by the preference form
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"diets":       kitchen.DietOptions,
		"cuisines":    kitchen.CuisineOptions,
		"max_images":  s.options.MaxImages,
		"max_recipes": s.options.MaxRecipes,
	})
}

// handleCreateSession starts a new session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Create()
	s.writeSession(w, http.StatusCreated, state, err)
}

// handleGetSession returns a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Get(r.PathValue("id"))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleDeleteSession ends a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadImages adds one or more photos from the multipart "file" field
func (s *Server) handleUploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.options.MaxUploadBytes); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorMsg = fmt.Sprintf("Upload is too large. Maximum size is %dMB. Please compress or resize your photos.", s.options.MaxUploadBytes>>20)
		}
		writeJSONError(w, http.StatusBadRequest, errorResponse{Error: errorMsg})
		return
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "No file was selected. Please choose a photo to upload."})
		return
	}

	uploads := make([]scanning.Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded file", "error", err, "filename", header.Filename)
			writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "Error reading file. Please try again."})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeJSONError(w, http.StatusBadRequest, errorResponse{Error: "Error reading file. Please try again."})
			return
		}
		uploads = append(uploads, scanning.Upload{
			Filename:    header.Filename,
			ContentType: contentType(header.Header.Get("Content-Type"), header.Filename),
			Data:        data,
		})
	}

	state, err := s.manager.Upload(r.PathValue("id"), uploads)
	if err != nil {
		slog.Warn("Rejected upload", "session", r.PathValue("id"), "files", len(uploads), "error", err)
	}
	s.writeSession(w, http.StatusOK, state, err)
}

// contentType prefers the declared type and falls back to the file extension.
// An empty result lets the normalizer sniff the bytes.
func contentType(declared, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return ""
}

// handleClearImages removes every photo and resets the session
func (s *Server) handleClearImages(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.ClearImages(r.PathValue("id"))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleExtract runs ingredient extraction on the session's photos
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Extract(r.Context(), r.PathValue("id"))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleAddIngredient appends to the ingredient list
func (s *Server) handleAddIngredient(w http.ResponseWriter, r *http.Request) {
	var req ingredientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.manager.AddIngredient(r.PathValue("id"), kitchen.Ingredient(req))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleEditIngredient replaces an ingredient
func (s *Server) handleEditIngredient(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req ingredientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.manager.EditIngredient(r.PathValue("id"), i, kitchen.Ingredient(req))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleRemoveIngredient deletes an ingredient
func (s *Server) handleRemoveIngredient(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	state, err := s.manager.RemoveIngredient(r.PathValue("id"), i)
	s.writeSession(w, http.StatusOK, state, err)
}

// handleConfirm freezes the ingredient list with the chosen preferences
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	prefs := kitchen.Preferences{
		Diets:     req.Diets,
		Allergies: req.Allergies,
		Cuisine:   req.Cuisine,
		Notes:     req.Notes,
	}
	state, err := s.manager.Confirm(r.PathValue("id"), prefs, req.Count)
	s.writeSession(w, http.StatusOK, state, err)
}

// handleGenerate asks for recipes
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Generate(r.Context(), r.PathValue("id"))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleSelect picks a generated recipe
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	i, ok := pathIndex(w, r)
	if !ok {
		return
	}
	state, err := s.manager.Select(r.PathValue("id"), i)
	s.writeSession(w, http.StatusOK, state, err)
}

// handleRender creates the PDF for the selected recipe
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Render(r.PathValue("id"))
	s.writeSession(w, http.StatusOK, state, err)
}

// handleDownload returns the rendered document as an attachment
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if state.Document == nil {
		writeJSONError(w, http.StatusNotFound, errorResponse{Error: "No document has been rendered yet"})
		return
	}

	w.Header().Set("Content-Type", state.Document.Format)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": state.Document.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(state.Document.Data)))
	w.Write(state.Document.Data)
}
