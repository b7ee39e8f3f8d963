package routes

import (
	"errors"
	"net/http"

	"docgraph/internal/docs"
	"docgraph/internal/server/middleware"
	"docgraph/pkg/common"
	"docgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// documentView is a document with computed processing progress.
type documentView struct {
	docs.Document
	ProgressPercent int `json:"progress_percent"`
	ETASeconds      int `json:"eta_seconds"`
}

func viewOf(doc *docs.Document) documentView {
	return documentView{
		Document:        *doc,
		ProgressPercent: docs.Progress(doc),
		ETASeconds:      docs.ETASeconds(doc),
	}
}

func GetDocumentsHandler(c echo.Context) error {
	type listResponse struct {
		Message   string         `json:"message,omitempty"`
		Documents []documentView `json:"documents"`
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, listResponse{Message: "Unauthorized"})
	}

	documents, err := app.Docs.List(c.Request().Context(), user.UserID)
	if err != nil {
		logger.Error("Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, listResponse{Message: "Internal server error"})
	}

	views := make([]documentView, 0, len(documents))
	for i := range documents {
		views = append(views, viewOf(&documents[i]))
	}
	return c.JSON(http.StatusOK, listResponse{Documents: views})
}

func GetDocumentHandler(c echo.Context) error {
	type getResponse struct {
		Message  string        `json:"message,omitempty"`
		Document *documentView `json:"document,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, getResponse{Message: "Unauthorized"})
	}

	doc, err := app.Docs.GetForOwner(c.Request().Context(), c.Param("id"), user.UserID)
	if errors.Is(err, docs.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getResponse{Message: "Document not found"})
	}
	if err != nil {
		logger.Error("Failed to get document", "doc_id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, getResponse{Message: "Internal server error"})
	}

	view := viewOf(doc)
	return c.JSON(http.StatusOK, getResponse{Document: &view})
}

// GetRelatedDocumentsHandler lists documents linked to the given one by
// citation or shared entities.
func GetRelatedDocumentsHandler(c echo.Context) error {
	type relatedResponse struct {
		Message       string                   `json:"message,omitempty"`
		Relationships []common.DocRelationship `json:"relationships"`
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, relatedResponse{Message: "Unauthorized"})
	}

	ctx := c.Request().Context()
	doc, err := app.Docs.GetForOwner(ctx, c.Param("id"), user.UserID)
	if errors.Is(err, docs.ErrNotFound) {
		return c.JSON(http.StatusNotFound, relatedResponse{Message: "Document not found"})
	}
	if err != nil {
		logger.Error("Failed to get document", "doc_id", c.Param("id"), "err", err)
		return c.JSON(http.StatusInternalServerError, relatedResponse{Message: "Internal server error"})
	}

	relationships, err := app.Graph.RelatedDocuments(ctx, doc.ID)
	if err != nil {
		logger.Error("Failed to get related documents", "doc_id", doc.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, relatedResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, relatedResponse{Relationships: relationships})
}
