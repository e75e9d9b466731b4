// Package duties exposes duty creation, assignment and lifecycle over HTTP.
package duties

import (
	"context"
	"net/http"
	"strings"

	"github.com/kilianp07/dutysched/api/httpapi"
	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/model"
)

// Service is the part of the assignment engine the handlers use.
type Service interface {
	CreateLinkedDuty(ctx context.Context, req assign.LinkedDutyRequest) (model.Duty, error)
	ScheduleLinkedDuty(ctx context.Context, req assign.LinkedDutyRequest) (model.Duty, error)
	CreateUnlinkedDuty(ctx context.Context, req assign.UnlinkedDutyRequest) (model.Duty, error)
	AssignUnlinkedDuty(ctx context.Context, req assign.AssignRequest) (model.Duty, error)
	StartDuty(ctx context.Context, id string) (model.Duty, error)
	CompleteDuty(ctx context.Context, id string) (model.Duty, error)
	CancelDuty(ctx context.Context, id string) (model.Duty, error)
	Duties() dutystore.Reader
}

// Register mounts the duty routes on mux.
func Register(mux *http.ServeMux, svc Service) {
	h := &handler{svc: svc}
	mux.HandleFunc("POST /api/duties/linked", h.create(svc.CreateLinkedDuty))
	mux.HandleFunc("POST /api/duties/linked/proposals", h.create(svc.ScheduleLinkedDuty))
	mux.HandleFunc("POST /api/duties/unlinked", h.createUnlinked)
	mux.HandleFunc("POST /api/duties/{id}/assign", h.assign)
	mux.HandleFunc("POST /api/duties/{id}/start", h.move(svc.StartDuty))
	mux.HandleFunc("POST /api/duties/{id}/complete", h.move(svc.CompleteDuty))
	mux.HandleFunc("POST /api/duties/{id}/cancel", h.move(svc.CancelDuty))
	mux.HandleFunc("GET /api/duties", h.list)
	mux.HandleFunc("GET /api/duties/{id}", h.get)
}

type handler struct {
	svc Service
}

func (h *handler) create(fn func(context.Context, assign.LinkedDutyRequest) (model.Duty, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assign.LinkedDutyRequest
		if err := httpapi.Decode(r, &req); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		d, err := fn(r.Context(), req)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusCreated, d)
	}
}

func (h *handler) createUnlinked(w http.ResponseWriter, r *http.Request) {
	var req assign.UnlinkedDutyRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	d, err := h.svc.CreateUnlinkedDuty(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, d)
}

// assignBody is AssignRequest without the duty id, which comes from the path.
type assignBody struct {
	DriverID  string `json:"driver_id,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty"`
	RouteID   string `json:"route_id,omitempty"`
}

func (h *handler) assign(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if r.ContentLength != 0 {
		if err := httpapi.Decode(r, &body); err != nil {
			httpapi.WriteError(w, err)
			return
		}
	}
	d, err := h.svc.AssignUnlinkedDuty(r.Context(), assign.AssignRequest{
		DutyID:    r.PathValue("id"),
		DriverID:  body.DriverID,
		VehicleID: body.VehicleID,
		RouteID:   body.RouteID,
	})
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) move(fn func(context.Context, string) (model.Duty, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := fn(r.Context(), r.PathValue("id"))
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, d)
	}
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Duties().Get(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, d)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	ds, err := h.svc.Duties().List(f)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if ds == nil {
		ds = []model.Duty{}
	}
	httpapi.WriteJSON(w, http.StatusOK, ds)
}

// parseFilter reads state (comma separated), kind, driver_id, vehicle_id,
// from and to.
func parseFilter(r *http.Request) (dutystore.Filter, error) {
	q := r.URL.Query()
	f := dutystore.Filter{
		DriverID:  q.Get("driver_id"),
		VehicleID: q.Get("vehicle_id"),
	}
	if s := q.Get("state"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st, ok := model.ParseState(strings.TrimSpace(part))
			if !ok {
				return f, &model.InvalidFieldError{Field: "state", Reason: "unknown state " + part}
			}
			f.States = append(f.States, st)
		}
	}
	if k := q.Get("kind"); k != "" {
		f.Kind = model.DutyKind(k)
		if !f.Kind.Valid() {
			return f, &model.InvalidFieldError{Field: "kind", Reason: "unknown duty kind " + k}
		}
	}
	var err error
	if f.From, err = httpapi.QueryTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = httpapi.QueryTime(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}
