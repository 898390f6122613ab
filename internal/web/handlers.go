package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/intelligrit/durian-map/internal/discovery"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/model"
	"github.com/intelligrit/durian-map/internal/viewsync"
)

type typeMeta struct {
	ID    model.OrchardType `json:"id"`
	Label string            `json:"label"`
	Icon  string            `json:"icon"`
}

type statusMeta struct {
	ID       model.DurianStatus `json:"id"`
	Label    string             `json:"label"`
	MapColor string             `json:"mapColor"`
	Icon     string             `json:"icon"`
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	var types []typeMeta
	for _, t := range model.OrchardTypes() {
		info := t.Info()
		types = append(types, typeMeta{ID: t, Label: info.Label, Icon: info.Icon})
	}
	var statuses []statusMeta
	for _, st := range model.DurianStatuses() {
		info := st.Info()
		statuses = append(statuses, statusMeta{ID: st, Label: info.Label, MapColor: info.MapColor, Icon: info.Icon})
	}
	writeJSON(w, map[string]any{
		"types":            types,
		"statuses":         statuses,
		"routeMarkerColor": model.RouteMarkerColor,
		"locateFailed":     geolocate.UserMessage,
	})
}

// handleOrchards serves a one-off derived list without a session.
func (s *Server) handleOrchards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f discovery.FilterState
	for _, name := range q["type"] {
		t, err := model.ParseOrchardType(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.SelectedTypes = append(f.SelectedTypes, t)
	}
	f.SearchQuery = q.Get("q")
	if sortName := q.Get("sort"); sortName != "" {
		m, err := discovery.ParseSortMode(sortName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.SortMode = m
	}

	var ref *geo.LatLng
	if near := q.Get("near"); near != "" {
		p, err := geo.ParseLatLng(near)
		if err != nil {
			http.Error(w, "invalid 'near' parameter", http.StatusBadRequest)
			return
		}
		ref = &p
	}

	var (
		list []model.Orchard
		err  error
	)
	if owner := q.Get("owner"); owner != "" {
		list, err = s.Source.ListByOwner(r.Context(), owner)
	} else {
		list, err = s.Source.List(r.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, discovery.Derive(list, f, discovery.ReferencePoint(f.SortMode, false, nil, ref)))
}

func (s *Server) handleOrchard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid orchard id", http.StatusBadRequest)
		return
	}
	o, err := s.Source.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if o == nil {
		http.Error(w, "orchard not found", http.StatusNotFound)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.openSession()
	// A failed load is part of the state, not a failed request.
	sess.Load(r.Context())
	st, err := sess.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, st)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sid"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.respondState(w, sess, "")
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.closeSession(chi.URLParam(r, "sid")) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sid"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	fc := geojson.NewFeatureCollection()
	err := sess.Inspect(func(e *discovery.Engine) {
		if path := e.RoutePath(); len(path) > 0 {
			line := geojson.NewFeature(geo.LineString(path))
			line.Properties["distanceKm"] = e.RouteStats().DistanceKm
			line.Properties["etaMinutes"] = e.RouteStats().ETAMinutes
			fc.Append(line)
		}
		for i, id := range e.RouteIDs() {
			o, ok := e.Orchard(id)
			if !ok {
				continue
			}
			stop := geojson.NewFeature(geo.Pt(o.Lat, o.Lng).Point())
			stop.ID = id
			stop.Properties["stop"] = i + 1
			stop.Properties["name"] = o.Name
			fc.Append(stop)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(body)
}

// actionRequest carries the arguments of every session action; each action
// reads only its own fields.
type actionRequest struct {
	Types    []model.OrchardType `json:"types"`
	SortMode *discovery.SortMode `json:"sortMode"`
	Query    string              `json:"query"`
	ID       *int64              `json:"id"`
	Mode     string              `json:"mode"`
	Width    int                 `json:"width"`
	Kind     string              `json:"kind"`
	Lat      *float64            `json:"lat"`
	Lng      *float64            `json:"lng"`
	Error    string              `json:"error"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sid"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req actionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	err := s.runAction(r, sess, chi.URLParam(r, "action"), req)

	var gerr *geolocate.Error
	switch {
	case err == nil:
		s.respondState(w, sess, "")
	case errors.As(err, &gerr):
		// Locate failures are user-facing messages; the action itself was handled.
		s.respondState(w, sess, geolocate.UserMessage)
	case errors.Is(err, errBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, discovery.ErrClosed):
		http.Error(w, "session closed", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) runAction(r *http.Request, sess *discovery.Session, action string, req actionRequest) error {
	switch action {
	case "filters":
		sortMode := discovery.SortDefault
		if req.SortMode != nil {
			sortMode = *req.SortMode
		}
		return sess.ApplyFilterSheet(r.Context(), sortMode, req.Types)
	case "types":
		return sess.Update(func(e *discovery.Engine) { e.SetSelectedTypes(req.Types) })
	case "search":
		return sess.Update(func(e *discovery.Engine) { e.SetSearchQuery(req.Query) })
	case "sort":
		if req.SortMode == nil {
			return badRequest("sortMode is required")
		}
		return sess.Update(func(e *discovery.Engine) { e.SetSortMode(*req.SortMode) })
	case "select":
		if req.ID == nil {
			return badRequest("id is required")
		}
		return sess.Update(func(e *discovery.Engine) { e.ToggleOrchardSelection(*req.ID) })
	case "dismiss":
		return sess.Update(func(e *discovery.Engine) { e.ClearSelection() })
	case "map-click":
		return sess.Update(func(e *discovery.Engine) { e.MapClicked() })
	case "route-mode":
		return sess.Update(func(e *discovery.Engine) { e.ToggleRouteMode() })
	case "clear-route":
		return sess.Update(func(e *discovery.Engine) { e.ClearRoute() })
	case "reset":
		return sess.Update(func(e *discovery.Engine) { e.ResetAllFilters() })
	case "view":
		mode, err := viewsync.ParseMode(req.Mode)
		if err != nil {
			return badRequest("%v", err)
		}
		return sess.Update(func(e *discovery.Engine) { e.SetViewMode(mode) })
	case "viewport":
		if req.Width <= 0 {
			return badRequest("width must be positive")
		}
		return sess.Update(func(e *discovery.Engine) { e.SetViewport(req.Width) })
	case "location":
		kind := geolocate.KindPassive
		if req.Kind == string(geolocate.KindExplicit) {
			kind = geolocate.KindExplicit
		}
		if req.Lat != nil && req.Lng != nil {
			fix := geo.Pt(*req.Lat, *req.Lng)
			return sess.ReportLocation(kind, &fix, "")
		}
		return sess.ReportLocation(kind, nil, req.Error)
	case "locate":
		_, err := sess.LocateMe(r.Context())
		return err
	case "initial-fix":
		sess.InitialFix(r.Context())
		return nil
	}
	return badRequest("unknown action %q", action)
}

type stateResponse struct {
	discovery.State
	Message string `json:"message,omitempty"`
}

func (s *Server) respondState(w http.ResponseWriter, sess *discovery.Session, message string) {
	st, err := sess.Snapshot()
	if err != nil {
		http.Error(w, "session closed", http.StatusNotFound)
		return
	}
	writeJSON(w, stateResponse{State: st, Message: message})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	// Wildcard CORS; this is a local tool, not a public API.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if v == nil {
		_, _ = w.Write([]byte("[]"))
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
