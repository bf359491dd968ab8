package fakeapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/util"
)

type securityQuery struct {
	Type      string `param:"type" validate:"required"`
	Name      string `query:"name"`
	Names     string `query:"names"`
	IDs       string `query:"ids"`
	Metrics   string `query:"metrics"`
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
	AsOf      string `query:"as_of"`
}

type metricsQuery struct {
	Type string `param:"type" validate:"required"`
	ID   string `param:"id"`
	Name string `query:"name"`
}

func (s *Server) listTypes(c echo.Context) error {
	out := make([]map[string]any, 0, len(SecurityTypes))
	for _, t := range SecurityTypes {
		out = append(out, map[string]any{"name": t})
	}
	return s.collection(c, out)
}

func supportedType(t string) bool {
	for _, st := range SecurityTypes {
		if st == t {
			return true
		}
	}
	return false
}

// listSecurities serves both definitions and, when metrics is set, metric rows.
func (s *Server) listSecurities(c echo.Context) error {
	q := &securityQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, q); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !supportedType(q.Type) {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, "unknown security type "+q.Type)
	}

	s.mu.Lock()
	all := append([]security(nil), s.securities[q.Type]...)
	s.mu.Unlock()

	ids, names, name := csvSet(q.IDs), csvSet(q.Names), q.Name
	type selected struct {
		pos int
		sec security
	}
	var secs []selected
	for i, sec := range all {
		if ids != nil {
			if _, ok := ids[sec.ID]; !ok {
				continue
			}
		}
		if names != nil {
			if _, ok := names[sec.Name]; !ok {
				continue
			}
		}
		if name != "" && sec.Name != name {
			continue
		}
		secs = append(secs, selected{pos: i, sec: sec})
	}

	if q.Metrics == "" {
		out := make([]map[string]any, 0, len(secs))
		for _, sel := range secs {
			out = append(out, map[string]any{"id": sel.sec.ID, "name": sel.sec.Name})
		}
		return s.collection(c, out)
	}

	start := util.ParseTimeDefault(q.StartDate, time.Time{})
	end := util.ParseTimeDefault(q.EndDate, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	metrics := util.SplitCSV(q.Metrics)

	rows := make([]map[string]any, 0)
	for _, sel := range secs {
		for d, day := range Dates {
			if day.Before(start) || day.After(end) {
				continue
			}
			row := map[string]any{"eff_ts": EffTS(day), "id": sel.sec.ID, "name": sel.sec.Name}
			has := false
			for _, m := range metrics {
				if v := MetricValue(sel.pos, m, d); v != nil {
					row[m] = *v
					has = true
				}
			}
			// the upstream omits rows with nothing to report
			if has {
				rows = append(rows, row)
			}
		}
	}
	return s.collection(c, rows)
}

func (s *Server) metricsByID(c echo.Context) error {
	return s.metricDefinitions(c)
}

func (s *Server) metricsByName(c echo.Context) error {
	return s.metricDefinitions(c)
}

func (s *Server) metricDefinitions(c echo.Context) error {
	q := &metricsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, q); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s.mu.Lock()
	all := s.securities[q.Type]
	s.mu.Unlock()

	found := false
	for _, sec := range all {
		if (q.ID != "" && sec.ID == q.ID) || (q.ID == "" && sec.Name == q.Name) {
			found = true
			break
		}
	}
	out := make([]map[string]any, 0, len(Metrics))
	if found {
		for _, m := range Metrics {
			out = append(out, map[string]any{
				"name":        m,
				"description": "fixture metric " + m,
				"data_type":   "float",
			})
		}
	}
	return s.collection(c, out)
}
