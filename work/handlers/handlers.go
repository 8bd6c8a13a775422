package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tempest-engine/work/catalog"
	"tempest-engine/work/guide"
	"tempest-engine/work/logger"
	"tempest-engine/work/scheduler"

	"github.com/gorilla/mux"
)

// writeJSON renders v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("{handlers/handlers - writeJSON} failed to encode response: %v", err)
	}
}

// writeError renders a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseTimeParam parses an optional RFC 3339 query parameter, returning the zero
// time when absent.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// HandleHealth reports liveness plus the running version.
func HandleHealth(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	}
}

// HandleChannels returns the static channel lineup in guide order.
func HandleChannels(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, g.Channels())
	}
}

// HandleGuide assembles the EPG window. Optional query params: start (RFC 3339)
// and hours.
func HandleGuide(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := parseTimeParam(r, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return
		}

		hours := 0
		if raw := r.URL.Query().Get("hours"); raw != "" {
			hours, err = strconv.Atoi(raw)
			if err != nil || hours < 0 {
				writeError(w, http.StatusBadRequest, "invalid hours")
				return
			}
		}

		data, err := g.GuideData(start, hours)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

// HandleCurrentProgram returns what is airing on the channel right now. A channel
// with nothing airing yields 200 with a null program, not an error; the UI shows
// "no programming" for it.
func HandleCurrentProgram(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channel"]
		item, ok := g.CurrentProgram(channelID)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"program": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"program": item})
	}
}

// HandleNextProgram returns the channel's next upcoming item.
func HandleNextProgram(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channel"]
		item, ok := g.NextProgram(channelID)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"program": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"program": item})
	}
}

// HandleChannelSchedule returns a channel's items. Optional query params: either
// date (YYYY-MM-DD, served from the day-slice cache) or start/end (RFC 3339).
func HandleChannelSchedule(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channel"]

		if rawDay := r.URL.Query().Get("date"); rawDay != "" {
			day, err := time.Parse("2006-01-02", rawDay)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid date")
				return
			}
			writeJSON(w, http.StatusOK, g.DaySchedule(channelID, day))
			return
		}

		start, err := parseTimeParam(r, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		end, err := parseTimeParam(r, "end")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time")
			return
		}

		items, err := g.ChannelSchedule(channelID, start, end)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleAllSchedules returns every channel's items in an optional window, keyed
// by channel id.
func HandleAllSchedules(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := parseTimeParam(r, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		end, err := parseTimeParam(r, "end")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time")
			return
		}

		schedules, err := g.AllChannelsSchedule(start, end)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, schedules)
	}
}

// HandleSearch finds programs by title/description substring, ordered by start
// time ascending.
func HandleSearch(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter q")
			return
		}
		writeJSON(w, http.StatusOK, g.SearchPrograms(query))
	}
}

// HandleStats summarizes the current schedules.
func HandleStats(g *guide.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, g.Stats())
	}
}

// scheduleRequest is the POST body for an explicit scheduling override.
type scheduleRequest struct {
	AssetID         string    `json:"assetId"`
	StartTime       time.Time `json:"startTime"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
}

// HandleScheduleAsset explicitly places an asset on a channel, evicting any
// overlapping items.
func HandleScheduleAsset(e *scheduler.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channel"]

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AssetID == "" || req.StartTime.IsZero() {
			writeError(w, http.StatusBadRequest, "assetId and startTime are required")
			return
		}

		item, err := e.ScheduleAsset(channelID, req.AssetID, req.StartTime,
			time.Duration(req.DurationSeconds)*time.Second)
		if err != nil {
			switch {
			case errors.Is(err, catalog.ErrAssetNotFound), errors.Is(err, scheduler.ErrChannelNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// HandleRemoveScheduledItem removes one scheduled item by id.
func HandleRemoveScheduledItem(e *scheduler.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		err := e.RemoveScheduledItem(vars["channel"], vars["item"])
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

// HandleRegenerate forces an immediate full schedule regeneration.
func HandleRegenerate(e *scheduler.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.ForceRegenerate()
		writeJSON(w, http.StatusOK, map[string]string{"status": "regenerated"})
	}
}

// HandleSync triggers an out-of-band catalog re-sync against the asset source.
// A source failure keeps the current catalog and reports 502.
func HandleSync(l *catalog.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		if err := l.Sync(ctx); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "synced", "assets": l.Size()})
	}
}
