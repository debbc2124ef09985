// Package statusapi is a thin, read-only HTTP+WebSocket mirror of
// pipeline progress and Store-backed classification queries — not a
// chain-following service and not the HTML/Plotly reporting layer
// named out of scope (spec.md §1).
package statusapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/p2ms-forensics/internal/store"
)

// Handler serves the status endpoints over a shared Store handle.
type Handler struct {
	store    *store.Store
	hub      *Hub
	reporter *Reporter
	runID    uuid.UUID
}

func NewHandler(s *store.Store, hub *Hub, reporter *Reporter) *Handler {
	return &Handler{store: s, hub: hub, reporter: reporter, runID: reporter.runID}
}

// SetupRouter wires the routes onto a gin engine, following the
// teacher's SetupRouter(...) *gin.Engine pattern in
// internal/api/routes.go.
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/progress", h.handleProgress)
	r.GET("/progress/ws", h.hub.Subscribe)
	r.GET("/classifications/:txid", h.handleClassification)
	r.GET("/stats", h.handleStats)

	return r
}

func (h *Handler) handleProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.reporter.Snapshot())
}

// handleClassification serves GET /classifications/:txid with the
// enriched transaction and its P2MS outputs as stored; the response
// does not include the transaction's classification rows.
func (h *Handler) handleClassification(c *gin.Context) {
	txid := c.Param("txid")
	tx, err := h.store.GetEnrichedTransaction(c.Request.Context(), txid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found or not yet enriched"})
		return
	}
	outputs, err := h.store.GetP2MSOutputs(c.Request.Context(), txid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction": tx,
		"outputs":     outputs,
	})
}

func (h *Handler) handleStats(c *gin.Context) {
	counts, err := h.store.ProtocolCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runId":          h.runID.String(),
		"progress":       h.reporter.Snapshot(),
		"protocolCounts": counts,
	})
}
