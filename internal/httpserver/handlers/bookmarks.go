package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/sources/homepage"
)

// maxJSONBody bounds create and rename payloads.
const maxJSONBody = 16 << 10

type listResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

type createRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type importFailure struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

type importResponse struct {
	Created []domain.Bookmark `json:"created"`
	Failed  []importFailure   `json:"failed"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// ListBookmarks returns the caller's bookmarks, newest first.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := mw.CurrentSession(r.Context()).OwnerID()

		rows, err := d.Repo.Load(r.Context(), owner)
		if err != nil {
			writeError(w, d.Logger, "list bookmarks", err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Bookmarks: rows})
	}
}

// CreateBookmark adds one bookmark.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		owner := mw.CurrentSession(r.Context()).OwnerID()
		row, err := d.Repo.Create(r.Context(), owner, req.Title, req.URL)
		if err != nil {
			writeError(w, d.Logger, "create bookmark", err)
			return
		}
		writeJSON(w, http.StatusCreated, row)
	}
}

// DeleteBookmark removes {id}. The caller confirms with ?confirm=true;
// without it nothing is deleted and 428 is returned.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
		if !confirmed {
			writeJSON(w, http.StatusPreconditionRequired, errorResponse{Error: "add ?confirm=true to delete"})
			return
		}

		owner := mw.CurrentSession(r.Context()).OwnerID()
		yes := func(context.Context) (bool, error) { return true, nil }

		if _, err := d.Repo.Delete(r.Context(), owner, id, yes); err != nil {
			writeError(w, d.Logger, "delete bookmark", err)
			return
		}
		// Deleting a missing row is a no-op, so retries are safe.
		w.WriteHeader(http.StatusNoContent)
	}
}

// RenameBookmark changes the title of {id}.
func RenameBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		owner := mw.CurrentSession(r.Context()).OwnerID()
		row, err := d.Repo.Rename(r.Context(), owner, chi.URLParam(r, "id"), req.Title)
		if err != nil {
			writeError(w, d.Logger, "rename bookmark", err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// ImportBookmarks reads a Homepage bookmarks.yaml or services.yaml body and
// adds every link it holds.
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.MaxImportBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "import file too large"})
				return
			}
			badRequest(w, "failed to read body")
			return
		}

		drafts, err := homepage.Drafts(data)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		owner := mw.CurrentSession(r.Context()).OwnerID()
		res, err := d.Repo.Import(r.Context(), owner, drafts)
		if err != nil {
			writeError(w, d.Logger, "import bookmarks", err)
			return
		}

		resp := importResponse{Created: res.Created, Failed: []importFailure{}}
		if resp.Created == nil {
			resp.Created = []domain.Bookmark{}
		}
		for _, f := range res.Failed {
			_, message := statusFor(f.Err)
			resp.Failed = append(resp.Failed, importFailure{Title: f.Draft.Title, URL: f.Draft.URL, Error: message})
		}

		d.Logger.Info("bookmarks imported",
			logger.String("owner", owner),
			logger.Int("created", len(res.Created)),
			logger.Int("failed", len(res.Failed)))
		writeJSON(w, http.StatusOK, resp)
	}
}
