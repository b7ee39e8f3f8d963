package routes

import (
	"net/http"

	"docgraph/internal/server/middleware"
	"docgraph/pkg/ai"
	"docgraph/pkg/answer"
	"docgraph/pkg/logger"
	"docgraph/pkg/rerank"
	"docgraph/pkg/retriever"

	"github.com/labstack/echo/v4"
)

// ChatHandler answers a question over the caller's document library:
// retrieval, reranking and answer generation in one request.
func ChatHandler(c echo.Context) error {
	type historyMessage struct {
		Role    string `json:"role" validate:"required,oneof=user assistant"`
		Message string `json:"message" validate:"required"`
	}

	type chatBody struct {
		Message string           `json:"message" validate:"required"`
		History []historyMessage `json:"history" validate:"dive"`
		DocIDs  []string         `json:"doc_ids"`
		TopK    int              `json:"top_k" validate:"omitempty,min=1,max=50"`
	}

	type chatResponse struct {
		Message   string                 `json:"message,omitempty"`
		Answer    string                 `json:"answer,omitempty"`
		Citations []answer.Citation      `json:"citations,omitempty"`
		Synthesis bool                   `json:"synthesis"`
		Retrieval *retriever.Diagnostics `json:"retrieval,omitempty"`
		Metrics   *ai.ModelMetrics       `json:"metrics,omitempty"`
	}

	data := new(chatBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, chatResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, chatResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, chatResponse{Message: "Unauthorized"})
	}

	ctx := c.Request().Context()

	chunks, diagnostics, err := app.Retriever.Retrieve(ctx, retriever.Params{
		OwnerID: user.UserID,
		Query:   data.Message,
		DocIDs:  data.DocIDs,
	})
	if err != nil {
		logger.Error("Retrieval failed", "err", err)
		return c.JSON(http.StatusInternalServerError, chatResponse{Message: "Internal server error"})
	}

	topK := data.TopK
	if topK <= 0 {
		topK = rerank.DefaultTopK
	}
	chunks = app.Reranker.Rerank(ctx, data.Message, chunks, topK)

	history := make([]ai.ChatMessage, 0, len(data.History))
	for _, m := range data.History {
		history = append(history, ai.ChatMessage{Role: m.Role, Message: m.Message})
	}

	app.AiClient.ResetMetrics()
	result, err := app.Generator.Generate(ctx, data.Message, chunks, history)
	if err != nil {
		logger.Error("Answer generation failed", "err", err)
		return c.JSON(http.StatusInternalServerError, chatResponse{Message: "Internal server error"})
	}
	metrics := app.AiClient.GetMetrics()

	return c.JSON(http.StatusOK, chatResponse{
		Answer:    result.Answer,
		Citations: result.Citations,
		Synthesis: result.Synthesis,
		Retrieval: &diagnostics,
		Metrics:   &metrics,
	})
}
