package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"vehicledetect/internal/config"
	"vehicledetect/internal/dto"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/service"
	"vehicledetect/internal/service/storage"
)

const (
	msgNoFilePart     = "No file part in the request"
	msgNoSelectedFile = "No selected file"
	// maxFieldBytes bounds plain form values such as category.
	maxFieldBytes = 1 << 10
)

// DetectHandler handles POST /detect: a multipart upload with a "file" part
// and an optional "category" field. The staged upload is removed on every path.
func DetectHandler(manager *service.Manager, staging *storage.StagingService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	defaultCategory := cfg.DefaultCategory

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, logger, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Leave headroom for the multipart envelope and form fields.
		maxBody := cfg.MaxUploadBytes() + (1 << 20)
		if r.ContentLength > maxBody {
			respondError(w, logger, storage.ErrTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)

		form, err := r.MultipartReader()
		if err != nil {
			respondError(w, logger, msgNoFilePart, http.StatusBadRequest)
			return
		}

		var (
			staged      *storage.StagedFile
			filename    string
			hasFile     bool
			category    = defaultCategory
			hasCategory bool
		)
		defer func() {
			if err := staging.Remove(staged); err != nil {
				logger.Error("%v", err)
			}
		}()

		for {
			part, err := form.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					respondError(w, logger, storage.ErrTooLarge.Error(), http.StatusRequestEntityTooLarge)
					return
				}
				respondError(w, logger, msgNoFilePart, http.StatusBadRequest)
				return
			}

			switch part.FormName() {
			case "file":
				name, isFile := uploadFilename(part)
				if !isFile || hasFile {
					break
				}
				hasFile, filename = true, name
				if name == "" {
					break
				}
				staged, err = staging.Stage(name, part)
				if err != nil {
					part.Close()
					logger.Error("Error staging upload %s: %v", name, err)
					respondError(w, logger, err.Error(), statusForError(err))
					return
				}
			case "category":
				if _, isFile := uploadFilename(part); isFile || hasCategory {
					break
				}
				value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
				if err != nil {
					part.Close()
					respondError(w, logger, msgNoFilePart, http.StatusBadRequest)
					return
				}
				hasCategory, category = true, string(value)
			}
			part.Close()
		}

		if !hasFile {
			respondError(w, logger, msgNoFilePart, http.StatusBadRequest)
			return
		}
		if filename == "" {
			respondError(w, logger, msgNoSelectedFile, http.StatusBadRequest)
			return
		}

		outcome, err := manager.Detect(r.Context(), service.DetectRequest{
			RequestID: uuid.NewString(),
			ImagePath: staged.Path,
			Filename:  filename,
			Category:  category,
		})
		if err != nil {
			respondError(w, logger, err.Error(), statusForError(err))
			return
		}

		respondJSON(w, logger, dto.DetectResponse{Result: outcome.Present}, http.StatusOK)
	}
}

// uploadFilename reports the part's filename and whether the part carries a
// filename parameter at all. Only such parts count as file uploads; a part
// sent with filename="" is an upload with no selected file.
func uploadFilename(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	if name, ok := params["filename"]; !ok || name == "" {
		return "", ok
	}
	return part.FileName(), true
}
