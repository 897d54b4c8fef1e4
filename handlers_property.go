package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

func (a *App) HandleCreateProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	form := &propertyForm{}
	if isMultipart(r) {
		var err error
		if form, err = parsePropertyForm(w, r); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
	} else if err := a.decodePropertyJSON(w, r, form); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	paths, err := a.saveImages(r.Context(), form.files)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	p, err := a.Properties.Create(r.Context(), id.UserID, paths, form.field("address"), form.field("city"))
	if err != nil {
		a.removeImages(r.Context(), paths)
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *App) HandleListProperties(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	props, err := a.Properties.ListByOwner(r.Context(), id.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (a *App) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	p, err := a.Properties.Get(r.Context(), mux.Vars(r)["id"], id.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdateProperty accepts multipart (fields and images) or JSON (fields
// only). Empty or missing fields keep their stored value; uploaded images
// replace the whole list.
func (a *App) HandleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	propertyID := mux.Vars(r)["id"]

	form := &propertyForm{}
	if isMultipart(r) {
		var err error
		if form, err = parsePropertyForm(w, r); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
	} else if err := a.decodePropertyJSON(w, r, form); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	// check ownership before touching storage
	if _, err := a.Properties.Get(r.Context(), propertyID, id.UserID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	patch := PropertyPatch{Address: form.nonEmpty("address"), City: form.nonEmpty("city")}
	if len(form.files) > 0 {
		paths, err := a.saveImages(r.Context(), form.files)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		patch.Images = paths
	}

	p, err := a.Properties.Update(r.Context(), propertyID, id.UserID, patch)
	if err != nil {
		a.removeImages(r.Context(), patch.Images)
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) HandleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := a.Properties.Delete(r.Context(), mux.Vars(r)["id"], id.UserID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Property deleted successfully"})
}

// decodePropertyJSON fills form values from an optional JSON body with
// address and city fields.
func (a *App) decodePropertyJSON(w http.ResponseWriter, r *http.Request, form *propertyForm) error {
	var in struct {
		Address *string `json:"address"`
		City    *string `json:"city"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	form.values = map[string][]string{}
	if in.Address != nil {
		form.values["address"] = []string{*in.Address}
	}
	if in.City != nil {
		form.values["city"] = []string{*in.City}
	}
	return nil
}
