package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

func (h *handler) tasks(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		tasks, err := h.app.Tasks.List(r.Context(), u.ID, q.Get("status"), q.Get("due"), q.Get("tag"))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	case http.MethodPost:
		var payload struct {
			Title           string     `json:"title"`
			Notes           string     `json:"notes"`
			Priority        string     `json:"priority"`
			DueDate         *time.Time `json:"due_date"`
			ScheduledFor    *time.Time `json:"scheduled_for"`
			DurationMinutes int        `json:"duration_minutes"`
			Tags            []string   `json:"tags"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tasks.Create(r.Context(), u.ID, payload.Title, payload.Notes, payload.Priority, payload.DueDate, payload.ScheduledFor, payload.DurationMinutes, payload.Tags)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) taskResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/tasks")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	taskID := parts[0]

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var err error
		var updated interface{}
		switch parts[1] {
		case "complete":
			updated, err = h.app.Tasks.Complete(r.Context(), u.ID, taskID)
		case "reopen":
			updated, err = h.app.Tasks.Reopen(r.Context(), u.ID, taskID)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := h.app.Tasks.Get(r.Context(), u.ID, taskID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodPatch:
		var payload struct {
			Title           *string    `json:"title"`
			Notes           *string    `json:"notes"`
			Priority        *string    `json:"priority"`
			DueDate         *time.Time `json:"due_date"`
			ScheduledFor    *time.Time `json:"scheduled_for"`
			DurationMinutes *int       `json:"duration_minutes"`
			Tags            []string   `json:"tags"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		task, err := h.app.Tasks.Update(r.Context(), u.ID, taskID, payload.Title, payload.Notes, payload.Priority, payload.DueDate, payload.ScheduledFor, payload.DurationMinutes, payload.Tags)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		if err := h.app.Tasks.Delete(r.Context(), u.ID, taskID); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) systems(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		systems, err := h.app.Habits.ListSystems(r.Context(), u.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, systems)
	case http.MethodPost:
		var payload struct {
			Name        string     `json:"name"`
			Description string     `json:"description"`
			TargetDate  *time.Time `json:"target_date"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Habits.CreateSystem(r.Context(), u.ID, payload.Name, payload.Description, payload.TargetDate)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) systemResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/systems")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	systemID := parts[0]

	if len(parts) == 2 && parts[1] == "habits" {
		switch r.Method {
		case http.MethodGet:
			habits, err := h.app.Habits.ListHabits(r.Context(), u.ID, systemID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, habits)
		case http.MethodPost:
			var payload struct {
				Name     string `json:"name"`
				Cadence  string `json:"cadence"`
				Reminder string `json:"reminder"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Habits.CreateHabit(r.Context(), u.ID, systemID, payload.Name, payload.Cadence, payload.Reminder)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		system, err := h.app.Habits.GetSystem(r.Context(), u.ID, systemID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, system)
	case http.MethodPatch:
		var payload struct {
			Name        *string    `json:"name"`
			Description *string    `json:"description"`
			TargetDate  *time.Time `json:"target_date"`
			Archived    *bool      `json:"archived"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		system, err := h.app.Habits.UpdateSystem(r.Context(), u.ID, systemID, payload.Name, payload.Description, payload.TargetDate, payload.Archived)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, system)
	case http.MethodDelete:
		if err := h.app.Habits.DeleteSystem(r.Context(), u.ID, systemID); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) habitResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/habits")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	habitID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			habit, err := h.app.Habits.GetHabit(r.Context(), u.ID, habitID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, habit)
		case http.MethodPatch:
			var payload struct {
				Name     *string `json:"name"`
				Cadence  *string `json:"cadence"`
				Reminder *string `json:"reminder"`
				Archived *bool   `json:"archived"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			habit, err := h.app.Habits.UpdateHabit(r.Context(), u.ID, habitID, payload.Name, payload.Cadence, payload.Reminder, payload.Archived)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, habit)
		case http.MethodDelete:
			if err := h.app.Habits.DeleteHabit(r.Context(), u.ID, habitID); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "checkins":
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			checkins, err := h.app.Habits.ListCheckIns(r.Context(), u.ID, habitID, q.Get("from"), q.Get("to"))
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, checkins)
		case http.MethodPost:
			var payload struct {
				Day string `json:"day"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			checkin, err := h.app.Habits.CheckIn(r.Context(), u.ID, habitID, payload.Day)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, checkin)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case len(parts) == 3 && parts[1] == "checkins":
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := h.app.Habits.RemoveCheckIn(r.Context(), u.ID, habitID, parts[2]); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "streak":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		streak, err := h.app.Habits.Streak(r.Context(), u.ID, habitID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, streak)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) journal(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		entries, err := h.app.Journal.List(r.Context(), u.ID, q.Get("from"), q.Get("to"), q.Get("mood"), q.Get("tag"))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var payload struct {
			Title     string   `json:"title"`
			Content   string   `json:"content"`
			Mood      string   `json:"mood"`
			EntryDate string   `json:"entry_date"`
			Tags      []string `json:"tags"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Journal.Create(r.Context(), u.ID, payload.Title, payload.Content, payload.Mood, payload.EntryDate, payload.Tags)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) journalResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/journal")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entryID := parts[0]

	switch r.Method {
	case http.MethodGet:
		entry, err := h.app.Journal.Get(r.Context(), u.ID, entryID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodPatch:
		var payload struct {
			Title     *string  `json:"title"`
			Content   *string  `json:"content"`
			Mood      *string  `json:"mood"`
			EntryDate *string  `json:"entry_date"`
			Tags      []string `json:"tags"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := h.app.Journal.Update(r.Context(), u.ID, entryID, payload.Title, payload.Content, payload.Mood, payload.EntryDate, payload.Tags)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := h.app.Journal.Delete(r.Context(), u.ID, entryID); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
