package routes

import (
	"encoding/json"
	"net/http"

	"docgraph/internal/docs"
	"docgraph/internal/queue"
	"docgraph/internal/server/middleware"
	"docgraph/internal/storage"
	"docgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// UploadDocumentsHandler accepts multipart uploads, stores each file and
// queues it for ingestion. Documents are returned in pending state; the
// worker picks them up from there.
func UploadDocumentsHandler(c echo.Context) error {
	type uploadResponse struct {
		Message   string          `json:"message"`
		Documents []docs.Document `json:"documents,omitempty"`
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message: "Invalid request body",
		})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message: "No files provided",
		})
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, uploadResponse{
			Message: "Unauthorized",
		})
	}

	isDemo := form.Value["is_demo"] != nil && middleware.IsAdmin(user)

	ctx := c.Request().Context()
	created := make([]docs.Document, 0, len(uploads))
	for _, upload := range uploads {
		doc := &docs.Document{
			OwnerID:     user.UserID,
			FileName:    upload.Filename,
			FileSize:    upload.Size,
			ContentType: upload.Header.Get("Content-Type"),
			IsDemo:      isDemo,
		}
		if err := app.Docs.Create(ctx, doc); err != nil {
			logger.Error("Failed to create document", "file", upload.Filename, "err", err)
			return c.JSON(http.StatusInternalServerError, uploadResponse{
				Message: "Internal server error",
			})
		}

		src, err := upload.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, uploadResponse{
				Message: "Could not read uploaded file",
			})
		}
		if err := app.Docs.SetStage(ctx, doc.ID, docs.StageUploading, "storing uploaded file"); err != nil {
			logger.Warn("Failed to update document stage", "doc_id", doc.ID, "err", err)
		}
		err = storage.PutFile(ctx, app.S3, storage.OriginalKey(doc.ID, doc.FileName), src)
		src.Close()
		if err != nil {
			logger.Error("Failed to store uploaded file", "doc_id", doc.ID, "err", err)
			if failErr := app.Docs.SetFailed(ctx, doc.ID, "upload failed"); failErr != nil {
				logger.Error("Failed to mark document as failed", "doc_id", doc.ID, "err", failErr)
			}
			return c.JSON(http.StatusInternalServerError, uploadResponse{
				Message: "Internal server error",
			})
		}

		msg, err := json.Marshal(queue.QueueIngestMsg{DocID: doc.ID, OwnerID: user.UserID})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, uploadResponse{
				Message: "Internal server error",
			})
		}
		if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msg); err != nil {
			logger.Error("Failed to queue document", "doc_id", doc.ID, "err", err)
			if failErr := app.Docs.SetFailed(ctx, doc.ID, "failed to queue for processing"); failErr != nil {
				logger.Error("Failed to mark document as failed", "doc_id", doc.ID, "err", failErr)
			}
			return c.JSON(http.StatusInternalServerError, uploadResponse{
				Message: "Internal server error",
			})
		}

		created = append(created, *doc)
	}

	return c.JSON(http.StatusAccepted, uploadResponse{
		Message:   "Documents queued for processing",
		Documents: created,
	})
}
