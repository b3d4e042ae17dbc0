package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type assignSeatPayload struct {
	AttendeeID string `json:"attendee_id"`
}

type rsvpPayload struct {
	RSVPStatus string `json:"rsvp_status"`
}

type moveAttendeePayload struct {
	AttendeeID string          `json:"attendee_id"`
	From       seating.SeatRef `json:"from"`
	To         seating.SeatRef `json:"to"`
}

type dropAttendeePayload struct {
	AttendeeID string           `json:"attendee_id"`
	From       *seating.SeatRef `json:"from"`
	Point      seating.Point    `json:"point"`
}

type tableLayoutPayload struct {
	TableID    seating.TableID        `json:"table_id"`
	Shape      seating.TableShape     `json:"shape"`
	Dimensions seating.Dimensions     `json:"dimensions"`
	Seats      []seating.SeatPosition `json:"seats"`
}

func (h *httpHandler) handleGetPlan(c *gin.Context) {
	view, err := h.plans.View(c.Request.Context(), c.GetString(planIDContextKey))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleCreateTable(c *gin.Context) {
	var draft plan.TableDraft
	if !h.bindJSON(c, &draft) {
		return
	}
	change, err := h.plans.AddTable(c.Request.Context(), c.GetString(planIDContextKey), draft)
	h.writeChange(c, http.StatusCreated, change, err)
}

func (h *httpHandler) handleAddPresets(c *gin.Context) {
	change, err := h.plans.AddPresetTables(c.Request.Context(), c.GetString(planIDContextKey))
	h.writeChange(c, http.StatusCreated, change, err)
}

func (h *httpHandler) handleUpdateTable(c *gin.Context) {
	var update plan.TableUpdate
	if !h.bindJSON(c, &update) {
		return
	}
	change, err := h.plans.UpdateTable(c.Request.Context(), c.GetString(planIDContextKey), c.Param("tableId"), update)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleDeleteTable(c *gin.Context) {
	change, err := h.plans.DeleteTable(c.Request.Context(), c.GetString(planIDContextKey), c.Param("tableId"))
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleTableLayout(c *gin.Context) {
	view, err := h.plans.View(c.Request.Context(), c.GetString(planIDContextKey))
	if err != nil {
		h.writeError(c, err)
		return
	}
	table, ok := view.Tables.Table(seating.TableID(c.Param("tableId")))
	if !ok {
		h.writeError(c, &seating.NotFoundError{Kind: "table", ID: c.Param("tableId")})
		return
	}
	positions, err := seating.LayoutTable(table)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tableLayoutPayload{
		TableID:    table.ID,
		Shape:      table.Shape,
		Dimensions: seating.ComputeTableDimensions(table.Shape, len(table.Seats)),
		Seats:      positions,
	})
}

func (h *httpHandler) handleAssignSeat(c *gin.Context) {
	ref, err := seatRefFromPath(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var payload assignSeatPayload
	if !h.bindJSON(c, &payload) {
		return
	}
	change, err := h.plans.AssignSeat(c.Request.Context(), c.GetString(planIDContextKey), payload.AttendeeID, ref)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleUnassignSeat(c *gin.Context) {
	ref, err := seatRefFromPath(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	change, err := h.plans.UnassignSeat(c.Request.Context(), c.GetString(planIDContextKey), ref)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleMoveAttendee(c *gin.Context) {
	var payload moveAttendeePayload
	if !h.bindJSON(c, &payload) {
		return
	}
	change, err := h.plans.MoveAttendee(c.Request.Context(), c.GetString(planIDContextKey), payload.AttendeeID, payload.From, payload.To)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleDropAttendee(c *gin.Context) {
	var payload dropAttendeePayload
	if !h.bindJSON(c, &payload) {
		return
	}
	change, err := h.plans.DropAttendee(c.Request.Context(), c.GetString(planIDContextKey), payload.AttendeeID, payload.From, payload.Point)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleCreateGuest(c *gin.Context) {
	var draft plan.GuestDraft
	if !h.bindJSON(c, &draft) {
		return
	}
	change, err := h.plans.UpsertGuest(c.Request.Context(), c.GetString(planIDContextKey), "", draft)
	h.writeChange(c, http.StatusCreated, change, err)
}

func (h *httpHandler) handleReplaceGuest(c *gin.Context) {
	var draft plan.GuestDraft
	if !h.bindJSON(c, &draft) {
		return
	}
	change, err := h.plans.UpsertGuest(c.Request.Context(), c.GetString(planIDContextKey), c.Param("guestId"), draft)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleSetGuestRSVP(c *gin.Context) {
	var payload rsvpPayload
	if !h.bindJSON(c, &payload) {
		return
	}
	change, err := h.plans.SetGuestRSVP(c.Request.Context(), c.GetString(planIDContextKey), c.Param("guestId"), payload.RSVPStatus)
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleDeleteGuest(c *gin.Context) {
	change, err := h.plans.DeleteGuest(c.Request.Context(), c.GetString(planIDContextKey), c.Param("guestId"))
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) handleRemoveCompanion(c *gin.Context) {
	change, err := h.plans.RemoveCompanion(c.Request.Context(), c.GetString(planIDContextKey), c.Param("guestId"), c.Param("companionId"))
	h.writeChange(c, http.StatusOK, change, err)
}

func (h *httpHandler) bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return false
	}
	return true
}

func (h *httpHandler) writeChange(c *gin.Context, status int, change plan.Change, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !change.Applied {
		status = http.StatusOK
	}
	c.JSON(status, change)
}

// writeError maps engine and service failures onto HTTP responses.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	var validationErr *seating.ValidationError
	var notFoundErr *seating.NotFoundError
	var serviceErr *plan.ServiceError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid_request",
			"field":  validationErr.Field,
			"reason": validationErr.Reason,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not_found",
			"kind":  notFoundErr.Kind,
			"id":    notFoundErr.ID,
		})
	case errors.Is(err, seating.ErrDragInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "drag_in_progress"})
	case errors.As(err, &serviceErr):
		h.logger.Error("plan request failed", zap.String("code", serviceErr.Code()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": serviceErr.Code()})
	default:
		h.logger.Error("plan request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func seatRefFromPath(c *gin.Context) (seating.SeatRef, error) {
	tableID, err := seating.NewTableID(c.Param("tableId"))
	if err != nil {
		return seating.SeatRef{}, &seating.ValidationError{Field: "table_id", Reason: "must not be empty"}
	}
	seatID, err := strconv.Atoi(strings.TrimSpace(c.Param("seatId")))
	if err != nil {
		return seating.SeatRef{}, &seating.ValidationError{Field: "seat_id", Reason: "must be an integer"}
	}
	return seating.SeatRef{TableID: tableID, SeatID: seating.SeatID(seatID)}, nil
}
