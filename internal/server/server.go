// Package server exposes the simulator over HTTP for the real-time
// dashboard poller and batch-trigger clients.
package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/migration-sim/internal/domain/migration"
	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/platform/analytics"
	"github.com/ehr/migration-sim/internal/platform/export"
	"github.com/ehr/migration-sim/internal/platform/reporting"
)

// Server wires the orchestrator, monitor, generator, and rolling analytics
// behind an echo API. Completed batch results are retained in memory for
// report and export queries.
type Server struct {
	sim     *migration.Simulator
	mon     *monitor.Monitor
	rolling *analytics.Rolling
	gen     *record.Generator
	log     zerolog.Logger

	mu       sync.RWMutex
	batches  map[string]*migration.BatchResult
	patients map[string]*migration.PatientStatus
}

// New creates a server.
func New(sim *migration.Simulator, mon *monitor.Monitor, rolling *analytics.Rolling,
	gen *record.Generator, log zerolog.Logger) *Server {
	return &Server{
		sim:      sim,
		mon:      mon,
		rolling:  rolling,
		gen:      gen,
		log:      log,
		batches:  make(map[string]*migration.BatchResult),
		patients: make(map[string]*migration.PatientStatus),
	}
}

// Echo builds the configured echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(RequestLogger(s.log))

	api := e.Group("/api")
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/alerts", s.handleAlerts)
	api.POST("/alerts/:id/resolve", s.handleResolveAlert)
	api.POST("/batches", s.handleRunBatch)
	api.GET("/batches/:id", s.handleGetBatch)
	api.GET("/batches/:id/report.csv", s.handleBatchCSV)
	api.GET("/batches/:id/measures/:measure", s.handleMeasure)
	api.GET("/patients/:id/fhir", s.handlePatientFHIR)
	api.GET("/patients/:id/hl7", s.handlePatientHL7)

	return e
}

// handleDashboard returns the alert rollup plus rolling cross-batch
// aggregates for the dashboard poller.
func (s *Server) handleDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, &analytics.DashboardView{
		Monitor: s.mon.Dashboard(),
		Rolling: s.rolling.Snapshot(),
	})
}

func (s *Server) handleAlerts(c echo.Context) error {
	if sev := c.QueryParam("severity"); sev != "" {
		return c.JSON(http.StatusOK, s.mon.ActiveBySeverity(monitor.Severity(sev)))
	}
	return c.JSON(http.StatusOK, s.mon.ActiveAlerts())
}

func (s *Server) handleResolveAlert(c echo.Context) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	resolved := s.mon.Resolve(c.Param("id"), body.Notes)
	return c.JSON(http.StatusOK, map[string]bool{"resolved": resolved})
}

type runBatchRequest struct {
	Patients int    `json:"patients"`
	BatchID  string `json:"batch_id"`
}

func (s *Server) handleRunBatch(c echo.Context) error {
	req := runBatchRequest{Patients: 50}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Patients <= 0 || req.Patients > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "patients must be in 1..10000")
	}

	snaps := s.gen.GenerateBatch(req.Patients)
	res := s.sim.SimulateBatch(snaps, req.BatchID)
	s.rolling.RecordBatch(res)

	s.mu.Lock()
	s.batches[res.BatchID] = res
	for _, st := range res.Statuses {
		s.patients[st.PatientID] = st
	}
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleGetBatch(c echo.Context) error {
	s.mu.RLock()
	res, ok := s.batches[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleBatchCSV(c echo.Context) error {
	s.mu.RLock()
	res, ok := s.batches[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%s.csv", res.BatchID))
	c.Response().WriteHeader(http.StatusOK)
	return reporting.WriteBatchCSV(c.Response(), res)
}

func (s *Server) handleMeasure(c echo.Context) error {
	s.mu.RLock()
	res, ok := s.batches[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	report, err := reporting.EvaluateMeasure(c.Param("measure"), res)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handlePatientFHIR(c echo.Context) error {
	snap, err := s.finalSnapshot(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, export.FHIRBundle(snap))
}

func (s *Server) handlePatientHL7(c echo.Context) error {
	snap, err := s.finalSnapshot(c.Param("id"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/hl7-v2", export.HL7ADT(snap, "A04"))
}

func (s *Server) finalSnapshot(patientID string) (*record.Snapshot, error) {
	s.mu.RLock()
	st, ok := s.patients[patientID]
	s.mu.RUnlock()
	if !ok || st.FinalSnapshot == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return st.FinalSnapshot, nil
}
