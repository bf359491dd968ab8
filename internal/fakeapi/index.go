package fakeapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	xhttp "IndexSDK/pkg/http"
)

type indexQuery struct {
	Names     string `query:"names"`
	Name      string `query:"name"`
	Namespace string `query:"namespace"`
	Type      string `query:"type" validate:"omitempty,oneof=all prod"`
}

type identifierQuery struct {
	Provider string `param:"provider" validate:"required"`
	Names    string `query:"names"`
}

func (s *Server) listIndices(c echo.Context) error {
	q := &indexQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, q); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	names := csvSet(q.Names)

	s.mu.Lock()
	all := sortedByName(s.indices)
	s.mu.Unlock()

	out := make([]map[string]any, 0, len(all))
	for _, m := range all {
		if q.Type != "all" && m["stage"] != "prod" {
			continue
		}
		if names != nil {
			if _, ok := names[m["name"].(string)]; !ok {
				continue
			}
		}
		if q.Name != "" && m["name"] != q.Name {
			continue
		}
		if q.Namespace != "" && m["namespace"] != q.Namespace {
			continue
		}
		out = append(out, m)
	}
	return s.collection(c, out)
}

func (s *Server) getIndex(c echo.Context) error {
	m, ok := s.Index(c.Param("id"))
	if !ok {
		return xhttp.NotFoundResponse(c, "index not found")
	}
	return xhttp.SuccessResponse(c, m)
}

func (s *Server) createIndex(c echo.Context) error {
	body := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	name, _ := body["name"].(string)
	if name == "" {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "name",
			Message: "name is required",
		}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.indices {
		if m["name"] == name {
			return xhttp.ErrorResponse(c, http.StatusConflict, "index "+name+" already exists")
		}
	}
	id := uuid.NewString()
	body["id"] = id
	body["status"] = map[string]any{
		"created_at": time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
		"created_by": "test@merqube.com",
	}
	if _, ok := body["stage"]; !ok {
		body["stage"] = "prod"
	}
	s.indices[id] = clone(body)
	return xhttp.CreatedResponse(c, body)
}

func (s *Server) patchIndex(c echo.Context) error {
	id := c.Param("id")
	updates := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &updates); err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indices[id]
	if !ok {
		return xhttp.NotFoundResponse(c, "index not found")
	}
	for k, v := range updates {
		if k == "id" {
			continue
		}
		m[k] = v
	}
	return xhttp.SuccessResponse(c, clone(m))
}

func (s *Server) deleteIndex(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.indices[id]
	delete(s.indices, id)
	s.mu.Unlock()
	if !ok {
		return xhttp.NotFoundResponse(c, "index not found")
	}
	return xhttp.SuccessResponse(c, map[string]any{"id": id})
}

func (s *Server) subresource(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if _, ok := s.Index(id); !ok {
			return s.collection(c, []any{})
		}
		return s.collection(c, []map[string]any{{
			"index_id": id,
			"kind":     name,
			"date":     EffTS(Dates[0]),
		}})
	}
}

func (s *Server) getTargetPortfolio(c echo.Context) error {
	return s.collection(c, s.TargetPortfolios(c.Param("id")))
}

func (s *Server) putTargetPortfolio(c echo.Context) error {
	id := c.Param("id")
	if _, ok := s.Index(id); !ok {
		return xhttp.NotFoundResponse(c, "index not found")
	}
	var tp map[string]any
	if err := (&echo.DefaultBinder{}).BindBody(c, &tp); err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	s.mu.Lock()
	s.targetPortfolios[id] = append(s.targetPortfolios[id], tp)
	s.mu.Unlock()
	return xhttp.SuccessResponse(c, tp)
}

func (s *Server) lastRunState(c echo.Context) error {
	id := c.Param("id")
	if _, ok := s.Index(id); !ok {
		return xhttp.NotFoundResponse(c, "index not found")
	}

	s.mu.Lock()
	state := "SUCCEEDED"
	if queued := s.runStates[id]; len(queued) > 0 {
		state = queued[0]
		if len(queued) > 1 {
			s.runStates[id] = queued[1:]
		}
	}
	s.mu.Unlock()

	body := map[string]any{
		"index_id": id,
		"status":   state,
		"run_date": EffTS(Dates[len(Dates)-1]),
	}
	if state == "FAILED" {
		body["error"] = "calculation failed"
	}
	return xhttp.SuccessResponse(c, body)
}

func (s *Server) listIdentifiers(c echo.Context) error {
	q := &identifierQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, q); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	names := csvSet(q.Names)
	out := make([]map[string]any, 0)
	for _, ident := range s.Identifiers(q.Provider) {
		if names != nil {
			if _, ok := names[ident["name"].(string)]; !ok {
				continue
			}
		}
		out = append(out, ident)
	}
	return s.collection(c, out)
}

func (s *Server) createIdentifier(c echo.Context) error {
	q := &identifierQuery{Provider: c.Param("provider")}
	if err := xhttp.ValidateStruct(q); err != nil {
		var verrs xhttp.ValidationErrors
		if errors.As(err, &verrs) {
			return xhttp.BadRequestResponse(c, verrs)
		}
		return xhttp.ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	body := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	if _, ok := body["name"].(string); !ok {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, "name is required")
	}
	s.mu.Lock()
	s.identifiers[q.Provider] = append(s.identifiers[q.Provider], body)
	s.mu.Unlock()
	return xhttp.CreatedResponse(c, body)
}
