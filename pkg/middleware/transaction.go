package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/transaction"
)

// DefaultCommitStatusThreshold commits 2xx and 3xx responses and rolls
// back everything from 400 upwards.
const DefaultCommitStatusThreshold = http.StatusBadRequest

// TransactionConfig configures the transaction boundary.
type TransactionConfig struct {
	// CommitStatusThreshold is the first status code that rolls back
	// instead of committing. Non-positive values select the default.
	CommitStatusThreshold int
}

// Transaction owns the request transaction: it opens one per request,
// carries it in the request context for repositories to stage into, and
// resolves it exactly once from the final response status.
//
// The response is buffered so the status is final but unsent when the
// decision runs. Status below the threshold commits, anything else rolls
// back, and a canceled request rolls back no matter what the handler
// produced. When the commit itself fails the buffered response is
// discarded and replaced with a server error; the failure never escapes
// the request.
func Transaction(db *gorm.DB, cfg TransactionConfig, log interfaces.Logger) gin.HandlerFunc {
	threshold := cfg.CommitStatusThreshold
	if threshold <= 0 {
		threshold = DefaultCommitStatusThreshold
	}

	return func(c *gin.Context) {
		tc, err := transaction.Begin(c.Request.Context(), db)
		if err != nil {
			log.Error("failed to open request transaction",
				interfaces.String("method", c.Request.Method),
				interfaces.String("path", c.Request.URL.Path),
				interfaces.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, internalErrorResponse())
			return
		}

		writer := &bufferedWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = writer
		c.Request = c.Request.WithContext(transaction.NewContext(c.Request.Context(), tc))

		runHandlers(c, writer, log)
		resolve(c, writer, tc, threshold, log)

		writer.flush()
		c.Writer = writer.ResponseWriter
	}
}

// runHandlers executes the rest of the chain, containing panics: the
// buffered output is discarded and replaced with a server error so the
// resolution step sees a failure status.
func runHandlers(c *gin.Context, writer *bufferedWriter, log interfaces.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered in request handler",
				interfaces.String("method", c.Request.Method),
				interfaces.String("path", c.Request.URL.Path),
				interfaces.Any("panic", r),
				interfaces.String("stack", string(debug.Stack())))
			writer.replace(http.StatusInternalServerError, internalErrorResponse())
			c.Abort()
		}
	}()
	c.Next()
}

// resolve decides the fate of the request transaction from the buffered
// status. It is the only place a request transaction is committed or
// rolled back.
func resolve(c *gin.Context, writer *bufferedWriter, tc *transaction.Context, threshold int, log interfaces.Logger) {
	// A disconnected client still gets its transaction resolved.
	if err := c.Request.Context().Err(); err != nil {
		rollback(c, tc, log)
		return
	}

	if writer.status < threshold {
		if err := tc.Commit(); err != nil {
			// The context rolled back internally and is closed; the
			// staged response no longer reflects the outcome.
			log.Error("request transaction commit failed",
				interfaces.String("method", c.Request.Method),
				interfaces.String("path", c.Request.URL.Path),
				interfaces.Int("status", writer.status),
				interfaces.Error(err))
			writer.replace(http.StatusInternalServerError, internalErrorResponse())
		}
		return
	}

	rollback(c, tc, log)
}

func rollback(c *gin.Context, tc *transaction.Context, log interfaces.Logger) {
	if err := tc.Rollback(); err != nil && !pkgerrors.IsInvalidState(err) {
		log.Error("request transaction rollback failed",
			interfaces.String("method", c.Request.Method),
			interfaces.String("path", c.Request.URL.Path),
			interfaces.Error(err))
	}
}

// bufferedWriter delays the response until the transaction outcome is
// decided. The status and body stay replaceable until flush.
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

// WriteHeaderNow is deferred; the header goes out on flush.
func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.buf.Len() > 0
}

// Flush is deferred; streaming would bypass the decision point.
func (w *bufferedWriter) Flush() {}

// replace discards the buffered response in favor of a JSON error body.
func (w *bufferedWriter) replace(status int, body interface{}) {
	w.buf.Reset()
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.status = status
	if data, err := json.Marshal(body); err == nil {
		w.buf.Write(data)
	}
}

// flush sends the buffered response through the underlying writer.
func (w *bufferedWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	if w.buf.Len() > 0 {
		_, _ = w.ResponseWriter.Write(w.buf.Bytes())
	}
}
