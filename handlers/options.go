package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"grouping-server-go/db"
	"grouping-server-go/grouping"
	"grouping-server-go/roster"
)

// groupingRequest carries the user adjustable options. Unset fields fall back
// to the server defaults.
type groupingRequest struct {
	Mixed     *bool    `json:"mixed" form:"mixed"`
	MaxSpread *float64 `json:"maxSpread" form:"maxSpread"`
	GroupSize *int     `json:"groupSize" form:"groupSize"`
	// Labels may be sent as two values or as one "F,M" value.
	Labels []string `json:"labels" form:"labels"`
}

func (r groupingRequest) options(defaults grouping.Options) (grouping.Options, error) {
	opts := defaults
	if r.Mixed != nil {
		opts.Mixed = *r.Mixed
	}
	if r.MaxSpread != nil {
		opts.MaxSpread = *r.MaxSpread
	}
	if r.GroupSize != nil {
		opts.GroupSize = *r.GroupSize
	}

	labels := r.Labels
	if len(labels) == 1 {
		labels = strings.Split(labels[0], ",")
	}
	switch len(labels) {
	case 0:
	case 2:
		opts.Labels = [2]string{strings.TrimSpace(labels[0]), strings.TrimSpace(labels[1])}
	default:
		return opts, errors.New("labels must name exactly two sex labels")
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// respondError maps engine, parser and store errors to HTTP responses. Weight
// conversion errors keep their message verbatim so the user can fix the file.
func respondError(c *gin.Context, fallback string, err error) {
	var convErr *grouping.ConversionError
	switch {
	case errors.As(err, &convErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       convErr.Error(),
			"invalidRows": convErr.Invalid,
		})
	case errors.Is(err, grouping.ErrInvalidConfiguration),
		errors.Is(err, roster.ErrEmptyRoster),
		errors.Is(err, roster.ErrMissingColumn),
		errors.Is(err, roster.ErrUnsupportedFormat),
		errors.Is(err, db.ErrMissingName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
