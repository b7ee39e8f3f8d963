package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"docgraph/internal/docs"
	"docgraph/internal/queue"
	"docgraph/internal/server/middleware"
	"docgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteDocumentHandler queues a document for deletion. Owners can delete
// their own documents; demo documents require the view:all permission.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteResponse struct {
		Message string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, deleteResponse{Message: "Unauthorized"})
	}

	ctx := c.Request().Context()
	doc, err := app.Docs.GetForOwner(ctx, c.Param("id"), user.UserID)
	if errors.Is(err, docs.ErrNotFound) {
		return c.JSON(http.StatusNotFound, deleteResponse{Message: "Document not found"})
	}
	if err != nil {
		logger.Error("Failed to get document", "doc_id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{Message: "Internal server error"})
	}

	if doc.OwnerID != user.UserID && !middleware.HasPermission(user, "document.view:all") {
		return c.JSON(http.StatusForbidden, deleteResponse{Message: "Forbidden"})
	}

	msg, err := json.Marshal(queue.QueueDeleteMsg{DocID: doc.ID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, deleteResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.DeleteQueue, msg); err != nil {
		logger.Error("Failed to queue document deletion", "doc_id", doc.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, deleteResponse{Message: "Document queued for deletion"})
}
