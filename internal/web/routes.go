package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deskline/deskline/internal/records"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth)

	api := router.Group("/api")
	api.POST("/dataset", handleDatasetUpload(opts))
	api.GET("/dataset", handleDatasetInfo(opts))
	api.DELETE("/dataset", handleDatasetDelete(opts))
	api.GET("/sessions", handleSessionList(opts))
	api.DELETE("/sessions/:conversationID", handleSessionReset(opts))
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDatasetUpload ingests a multipart spreadsheet upload, publishes it
// to the in-memory store, and persists it so restarts survive.
func handleDatasetUpload(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		table, err := records.Ingest(fileHeader.Filename, f)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		if err := opts.Store.Load(opts.TenantID, table); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := records.SaveDataset(opts.DB, opts.TenantID, table); err != nil {
			// The in-memory table is live; losing persistence only hurts
			// the next restart. Report it but keep serving.
			log.Printf("web: persist dataset: %v", err)
		}

		c.JSON(http.StatusCreated, gin.H{
			"filename": table.Filename,
			"columns":  table.Columns,
			"rows":     len(table.Rows),
		})
	}
}

func handleDatasetInfo(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, err := opts.Store.Info(opts.TenantID)
		if err != nil {
			if errors.Is(err, records.ErrNoDataset) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no dataset loaded"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"filename":    table.Filename,
			"columns":     table.Columns,
			"rows":        len(table.Rows),
			"uploaded_at": table.UploadedAt,
		})
	}
}

func handleDatasetDelete(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts.Store.Drop(opts.TenantID)
		if err := records.DeleteDataset(opts.DB, opts.TenantID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSessionList(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := opts.Engine.Sessions().Summaries()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(summaries),
			"sessions": summaries,
		})
	}
}

func handleSessionReset(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationID")
		if !opts.Engine.ResetConversation(conversationID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live session for conversation"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
