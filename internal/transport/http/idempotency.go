package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// withIdempotency выполняет next не более одного раза на пару (покупатель, ключ).
// Повтор с тем же телом получает сохранённый ответ, с другим телом - 409.
// Без заголовка Idempotency-Key запрос обрабатывается как обычно.
func (h *Handler) withIdempotency(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	rawKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if rawKey == "" || h.svc.Idempotency == nil {
		next(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "failed to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	identity := identityFrom(r.Context())
	key := strconv.FormatInt(identity.CustomerID, 10) + ":" + rawKey
	hash := requestHash(r.Method, r.URL.Path, body)

	record, err := h.svc.Idempotency.CreateProcessing(r.Context(), key, hash, h.clock.Now().Add(h.idempotencyTTL))
	if err != nil {
		h.replayIdempotency(w, err, record)
		return
	}

	rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
	next(rec, r)

	mark := h.svc.Idempotency.MarkDone
	if rec.status >= http.StatusBadRequest {
		mark = h.svc.Idempotency.MarkFailed
	}
	if err := mark(r.Context(), key, rec.body.Bytes(), rec.status); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", rawKey).Warn("failed to store idempotent response")
	}
}

func (h *Handler) replayIdempotency(w http.ResponseWriter, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
				writeError(w, http.StatusInternalServerError, codeInternalError, "idempotency cache is empty")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(headerReplayed, "true")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			writeError(w, http.StatusConflict, codeIdempotencyInProgress, "request with the same idempotency key is already processing")
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "unknown idempotency record status")
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeError(w, http.StatusInternalServerError, codeInternalError, "failed to initialize idempotency request")
	}
}

func requestHash(method, path string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+2+len(body))
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// captureWriter пишет ответ клиенту и одновременно запоминает его для повтора.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
