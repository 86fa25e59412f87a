package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

func upsertRuleHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req RuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rule := &availability.Rule{
			PractitionerID: practitionerID,
			Weekday:        time.Weekday(req.Weekday),
			SlotMinutes:    req.SlotMinutes,
			Active:         req.Active,
		}
		if req.ID != "" {
			id, err := uuid.Parse(req.ID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_rule_id", "id must be a valid UUID")
				return
			}
			rule.ID = id
		}

		var parseErr error
		if rule.OpenTime, parseErr = availability.ParseTimeOfDay(req.OpenTime); parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid_open_time", parseErr.Error())
			return
		}
		if rule.CloseTime, parseErr = availability.ParseTimeOfDay(req.CloseTime); parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid_close_time", parseErr.Error())
			return
		}
		if req.BreakStart != "" {
			t, err := availability.ParseTimeOfDay(req.BreakStart)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_break_start", err.Error())
				return
			}
			rule.BreakStart = &t
		}
		if req.BreakEnd != "" {
			t, err := availability.ParseTimeOfDay(req.BreakEnd)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_break_end", err.Error())
				return
			}
			rule.BreakEnd = &t
		}

		saved, err := svc.UpsertRule(r.Context(), rule)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(saved))
	}
}

func listRulesHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		rules, err := svc.ListRules(r.Context(), practitionerID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]RuleResponse, 0, len(rules))
		for i := range rules {
			resp = append(resp, toRuleResponse(&rules[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func upsertBlackoutHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req BlackoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		b := &availability.Blackout{
			PractitionerID: practitionerID,
			Category:       availability.BlackoutCategory(req.Category),
			FullDay:        req.FullDay,
			Note:           req.Note,
		}
		if req.ID != "" {
			id, err := uuid.Parse(req.ID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_blackout_id", "id must be a valid UUID")
				return
			}
			b.ID = id
		}

		var err error
		if b.StartDate, err = time.Parse(dateLayout, req.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		if b.EndDate, err = time.Parse(dateLayout, req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return
		}
		if req.StartTime != "" {
			t, err := availability.ParseTimeOfDay(req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
				return
			}
			b.StartTime = &t
		}
		if req.EndTime != "" {
			t, err := availability.ParseTimeOfDay(req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
				return
			}
			b.EndTime = &t
		}

		saved, err := svc.UpsertBlackout(r.Context(), b)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBlackoutResponse(saved))
	}
}

func listBlackoutsHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		blackouts, err := svc.ListBlackouts(r.Context(), practitionerID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]BlackoutResponse, 0, len(blackouts))
		for i := range blackouts {
			resp = append(resp, toBlackoutResponse(&blackouts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func dayScheduleHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.DaySchedule(r.Context(), practitionerID, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func nextAvailableHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		from := time.Now()
		if v := r.URL.Query().Get("from"); v != "" {
			parsed, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			from = parsed
		}

		days := 14
		if v := r.URL.Query().Get("days"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 || parsed > 90 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be between 1 and 90")
				return
			}
			days = parsed
		}

		slot, err := svc.FindNextAvailable(r.Context(), practitionerID, from, days)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if slot == nil {
			writeError(w, http.StatusNotFound, "no_availability", "no open slot in the requested window")
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
