package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appointment-scheduler/internal/booking"
)

type formPage struct {
	Day         *booking.DayAvailability
	Prev, Next  string
	BookedSlots []string
}

// Form renders the booking page for ?date= (or the default date).
func (h *Handler) Form(c *gin.Context) {
	ctx := c.Request.Context()

	day, err := h.parseDate(c.Query("date"))
	if err != nil {
		day = h.slots.DefaultDate()
	}

	avail, err := h.slots.DayAvailability(ctx, day)
	if err != nil {
		h.internalError(c, "load availability", err)
		return
	}
	booked, err := h.slots.BookedSlots(ctx)
	if err != nil {
		h.internalError(c, "load booked slots", err)
		return
	}

	c.HTML(http.StatusOK, "index.html", formPage{
		Day:         avail,
		Prev:        day.AddDate(0, 0, -1).Format(dateLayout),
		Next:        day.AddDate(0, 0, 1).Format(dateLayout),
		BookedSlots: booked,
	})
}

// Book handles the form POST. Rejections are answered with the literal
// message as plain text so the page (and scripted clients) can show it.
func (h *Handler) Book(c *gin.Context) {
	a, err := h.validator.Book(c.Request.Context(), c.PostForm("appointment_time"), c.PostForm("details"))
	if h.metrics != nil {
		h.metrics.ObserveBooking(err)
	}
	if err != nil {
		if booking.IsRejection(err) {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("book failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Debug("booked from form", zap.Int64("id", a.ID))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) BookedSlots(c *gin.Context) {
	slots, err := h.slots.BookedSlots(c.Request.Context())
	if err != nil {
		h.internalError(c, "list booked slots", err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *Handler) Availability(c *gin.Context) {
	raw := c.Query("date")
	day := h.slots.DefaultDate()
	if raw != "" {
		var err error
		if day, err = h.parseDate(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	avail, err := h.slots.DayAvailability(c.Request.Context(), day)
	if err != nil {
		h.internalError(c, "load availability", err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

// ClearSlots deletes every appointment. Guarded by AdminHTTP in Router.
func (h *Handler) ClearSlots(c *gin.Context) {
	n, err := h.store.DeleteAll(c.Request.Context())
	if err != nil {
		h.internalError(c, "clear slots", err)
		return
	}
	if h.metrics != nil {
		h.metrics.SlotsCleared.Add(float64(n))
	}
	h.log.Info("slots cleared", zap.Int64("deleted", n))
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": n})
}

const dateLayout = "2006-01-02"

func (h *Handler) parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, h.slots.Policy().Location)
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.log.Error(op, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
