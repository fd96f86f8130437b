package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"doctranslate/internal/document"
)

// HandleDocumentUpload extracts the units of the uploaded "file".
func HandleDocumentUpload(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(w, r, app.maxUploadBytes()); err != nil {
			formError(w, err)
			return
		}
		data, header, err := readFormFile(r, "file")
		if err != nil {
			formError(w, err)
			return
		}

		res, err := app.docManager.Extract(r.Context(), data, header.Filename)
		if err != nil {
			writeStageError(w, "extract", err)
			return
		}
		log.Printf("[API] extracted %s: %d units", header.Filename, res.Bundle.Len())
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"file_type": res.Bundle.Format,
			"content":   res.Content,
			"filename":  res.Bundle.Filename,
		})
	}
}

// HandleDocumentTranslate translates the unit list in the "content" form field.
func HandleDocumentTranslate(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(w, r, app.maxUploadBytes()); err != nil {
			formError(w, err)
			return
		}
		req := document.TranslateRequest{
			FileType:         r.FormValue("file_type"),
			Content:          []byte(r.FormValue("content")),
			OriginalFilename: r.FormValue("original_filename"),
			SourceLang:       r.FormValue("source_lang"),
			TargetLang:       r.FormValue("target_lang"),
		}

		res, err := app.docManager.Translate(r.Context(), req)
		if err != nil {
			writeStageError(w, "translate", err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":            true,
			"translated_content": json.RawMessage(res.Content),
			"original_filename":  req.OriginalFilename,
			"stats":              res.Stats,
		})
	}
}

// HandleDocumentExport writes "translated_content" into "original_file" and
// streams the resulting document.
func HandleDocumentExport(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(w, r, app.maxUploadBytes()); err != nil {
			formError(w, err)
			return
		}
		original, header, err := readFormFile(r, "original_file")
		if err != nil {
			formError(w, err)
			return
		}

		res, err := app.docManager.Export(r.Context(), document.ExportRequest{
			FileType:          r.FormValue("file_type"),
			TranslatedContent: []byte(r.FormValue("translated_content")),
			Original:          original,
			OriginalFilename:  header.Filename,
		})
		if err != nil {
			writeStageError(w, "export", err)
			return
		}

		w.Header().Set("Content-Type", res.MediaType)
		w.Header().Set("Content-Disposition", res.ContentDisposition())
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.Data); err != nil {
			log.Printf("[API] export write %s: %v", res.Filename, err)
		}
	}
}
