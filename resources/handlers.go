package resources

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const homepageText = "Hello, Developers! Welcome to simple flask APIs."

// maxBodyBytes limita o corpo aceito em POST/PUT.
const maxBodyBytes = 1 << 20

type Handler struct {
	Store  *Store
	Logger *zap.Logger
}

func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Logger: logger}
}

// Mount registra as rotas em r. Quem chama decide quais middlewares (ex.:
// controle de admissão) envolvem o grupo.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.homepage)
	r.Get("/users", h.listUsers)
	r.Get("/tasks", h.listTasks)
	r.Post("/tasks", h.createTask)
	r.Put("/tasks/{task_id}", h.updateTask)
	r.Delete("/tasks/{task_id}", h.deleteTask)
}

func (h *Handler) homepage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, homepageText)
}

func (h *Handler) listUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Users())
}

func (h *Handler) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Tasks())
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var t Task
	if !h.decode(w, r, &t) {
		return
	}
	created := h.Store.CreateTask(t)
	h.Logger.Debug("task created", zap.Int("task_id", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var p TaskPatch
	if !h.decode(w, r, &p) {
		return
	}

	t, err := h.Store.UpdateTask(id, p)
	if errors.Is(err, ErrTaskNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteTask(id); errors.Is(err, ErrTaskNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
		return
	}
	h.Logger.Debug("task deleted", zap.Int("task_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task delete successfully"})
}

// taskID aceita só inteiros; qualquer outra coisa é rota inexistente.
func taskID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "task_id"))
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.Logger.Debug("invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
