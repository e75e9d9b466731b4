// Package resources exposes driver, vehicle and route management over HTTP.
package resources

import (
	"context"
	"net/http"

	"github.com/kilianp07/dutysched/api/httpapi"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

// Service is the part of the assignment engine the handlers use.
type Service interface {
	RegisterDriver(ctx context.Context, d model.Driver) error
	RegisterVehicle(ctx context.Context, v model.Vehicle) error
	RegisterRoute(ctx context.Context, r model.Route) error
	SetAvailability(ctx context.Context, id string, w model.TimeWindow) error
	SetDriverStatus(ctx context.Context, id string, s model.DriverStatus) error
	SetVehicleStatus(ctx context.Context, id string, s model.VehicleStatus) error
	Resources() registry.Reader
}

// Register mounts the resource routes on mux.
func Register(mux *http.ServeMux, svc Service) {
	h := &handler{svc: svc}
	mux.HandleFunc("POST /api/drivers", h.createDriver)
	mux.HandleFunc("GET /api/drivers", list(svc.Resources().Drivers))
	mux.HandleFunc("GET /api/drivers/{id}", get(svc.Resources().Driver))
	mux.HandleFunc("PUT /api/drivers/{id}/status", h.driverStatus)

	mux.HandleFunc("POST /api/vehicles", h.createVehicle)
	mux.HandleFunc("GET /api/vehicles", list(svc.Resources().Vehicles))
	mux.HandleFunc("GET /api/vehicles/{id}", get(svc.Resources().Vehicle))
	mux.HandleFunc("PUT /api/vehicles/{id}/status", h.vehicleStatus)

	mux.HandleFunc("POST /api/routes", h.createRoute)
	mux.HandleFunc("GET /api/routes", list(svc.Resources().Routes))
	mux.HandleFunc("GET /api/routes/{id}", get(svc.Resources().Route))

	mux.HandleFunc("PUT /api/resources/{id}/availability", h.availability)
}

type handler struct {
	svc Service
}

func list[T any](fn func() ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		items, err := fn()
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		httpapi.WriteJSON(w, http.StatusOK, items)
	}
}

func get[T any](fn func(string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := fn(r.PathValue("id"))
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, item)
	}
}

// create decodes a T, registers it and answers with the stored record.
func create[T any](w http.ResponseWriter, r *http.Request, id func(T) string,
	register func(context.Context, T) error, load func(string) (T, error)) {
	var item T
	if err := httpapi.Decode(r, &item); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if err := register(r.Context(), item); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	stored, err := load(id(item))
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, stored)
}

func (h *handler) createDriver(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(d model.Driver) string { return d.ID }, h.svc.RegisterDriver, h.svc.Resources().Driver)
}

func (h *handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(v model.Vehicle) string { return v.ID }, h.svc.RegisterVehicle, h.svc.Resources().Vehicle)
}

func (h *handler) createRoute(w http.ResponseWriter, r *http.Request) {
	create(w, r, func(rt model.Route) string { return rt.ID }, h.svc.RegisterRoute, h.svc.Resources().Route)
}

type statusBody struct {
	Status string `json:"status"`
}

func (h *handler) driverStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := h.svc.SetDriverStatus(r.Context(), id, model.DriverStatus(body.Status)); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	get(h.svc.Resources().Driver)(w, r)
}

func (h *handler) vehicleStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := h.svc.SetVehicleStatus(r.Context(), id, model.VehicleStatus(body.Status)); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	get(h.svc.Resources().Vehicle)(w, r)
}

// availability accepts a window; an empty object clears it.
func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	var win model.TimeWindow
	if err := httpapi.Decode(r, &win); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if err := h.svc.SetAvailability(r.Context(), r.PathValue("id"), win); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
