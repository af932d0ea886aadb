package admission

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finclear/oms/pkg/errors"
	"github.com/finclear/oms/pkg/metrics"
)

// RejectionResponse is the body returned when a batch is turned away at
// the gate. RetryAfter always equals the Retry-After header value.
type RejectionResponse struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retryAfter"`
	Timestamp  time.Time `json:"timestamp"`
	Details    string    `json:"details,omitempty"`
}

// Middleware gates inbound batch submissions on the overload detector.
// A rejected request is answered before any handler, database, or
// network work happens.
func Middleware(detector *Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !detector.IsOverloaded() {
			metrics.AdmissionDecisions.WithLabelValues("admitted").Inc()
			c.Next()
			return
		}

		retryAfter := detector.RetryAfterSeconds()
		metrics.AdmissionDecisions.WithLabelValues("rejected").Inc()

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, RejectionResponse{
			Code:       string(errors.KindOverloaded),
			Message:    "system is under heavy load, retry later",
			RetryAfter: retryAfter,
			Timestamp:  time.Now().UTC(),
		})
	}
}
