package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"itemstore/internal/item/model"
	"itemstore/internal/item/service"
	"itemstore/pkg/logger"
	"itemstore/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// Hook observes a request after its response has been written. Hooks run on
// the request goroutine outside the store lock and must not block.
type Hook func(model.Dispatch)

type ItemHandler struct {
	Service      *service.ItemService
	MaxBodyBytes int64
	hooks        []Hook
}

func NewItemHandler(svc *service.ItemService, maxBodyBytes int64, hooks ...Hook) *ItemHandler {
	return &ItemHandler{Service: svc, MaxBodyBytes: maxBodyBytes, hooks: hooks}
}

// RegisterRoutes mounts the item endpoints on r.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}", h.GetItem)
	r.Put("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.DeleteItem)
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, model.OpList)

	items, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, c, err)
		return
	}
	h.ok(w, c, http.StatusOK, items)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, model.OpGet)
	id, err := parseID(r)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.ItemID = id

	rec, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.Record = rec
	h.ok(w, c, http.StatusOK, rec)
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, model.OpCreate)
	body, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, c, err)
		return
	}

	rec, err := h.Service.Create(r.Context(), body)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.ItemID, _ = rec.ID()
	c.Record = rec
	h.ok(w, c, http.StatusCreated, rec)
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, model.OpUpdate)
	id, err := parseID(r)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.ItemID = id

	body, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, c, err)
		return
	}

	rec, err := h.Service.Update(r.Context(), id, body)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.Record = rec
	h.ok(w, c, http.StatusOK, rec)
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	c := h.begin(r, model.OpDelete)
	id, err := parseID(r)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.ItemID = id

	rec, err := h.Service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, c, err)
		return
	}
	c.Record = rec
	h.ok(w, c, http.StatusOK, rec)
}

// RouteNotFound answers every method/path pair that has no route.
func (h *ItemHandler) RouteNotFound(w http.ResponseWriter, r *http.Request) {
	h.fail(w, h.begin(r, model.OpUnmatched), model.ErrRouteNotFound)
}

// Health reports liveness without touching the store.
func (h *ItemHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type call struct {
	model.Dispatch
	start time.Time
}

func (h *ItemHandler) begin(r *http.Request, op string) *call {
	return &call{
		Dispatch: model.Dispatch{Op: op, Method: r.Method, Path: r.URL.Path},
		start:    time.Now(),
	}
}

func (h *ItemHandler) ok(w http.ResponseWriter, c *call, status int, payload interface{}) {
	utils.RespondJSON(w, status, payload)
	c.Status = status
	h.notify(c)
}

func (h *ItemHandler) fail(w http.ResponseWriter, c *call, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: %s %s failed: %v", c.Method, c.Path, err)
	}
	utils.RespondError(w, status, msg)
	c.Status = status
	c.Err = err
	h.notify(c)
}

func (h *ItemHandler) notify(c *call) {
	c.Duration = time.Since(c.start)
	for _, hook := range h.hooks {
		hook(c.Dispatch)
	}
}

// readBody buffers the whole request body before dispatch.
func (h *ItemHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read body: %v", model.ErrMalformedInput, err)
	}
	return body, nil
}

// parseID reads the {id} segment. A segment that is not a base-10 integer
// cannot name any item, so it is reported as not found.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", model.ErrNotFound, raw)
	}
	return id, nil
}

func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrNotAnObject):
		return http.StatusBadRequest, "Request body must be a JSON object"
	case errors.Is(err, model.ErrMalformedInput):
		return http.StatusBadRequest, "Invalid JSON"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "Name is required"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, model.ErrRouteNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, model.ErrCorruptStore):
		return http.StatusInternalServerError, "Store is unreadable"
	case errors.Is(err, model.ErrIDExhausted):
		return http.StatusInternalServerError, "Item id space exhausted"
	case errors.Is(err, model.ErrPersistenceFailure):
		return http.StatusInternalServerError, "Failed to persist item"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
