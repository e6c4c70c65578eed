// Package reports exposes the maternal health report endpoints: the
// asynchronous generate/poll pair and the authenticated synchronous variant.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"materna-backend/jobs"
	"materna-backend/login"
	"materna-backend/patientctx"
	"materna-backend/patients"
	"materna-backend/report"
	"materna-backend/sse"
)

// Submitter accepts report tasks without blocking. *jobs.Runner implements it.
type Submitter interface {
	Submit(t jobs.Task) error
}

// Notifier tells a patient that a generated report is available.
// *email.Mailer implements it.
type Notifier interface {
	SendReportReady(to, firstName, reportID string) error
}

type Config struct {
	// SyncTimeout bounds POST /generate-maternal-report.
	SyncTimeout time.Duration
	// PollInterval is the status check period of the events stream.
	PollInterval time.Duration
	// StreamTimeout caps how long an events stream stays open.
	StreamTimeout time.Duration
	// Notifier is optional; nil disables report-ready mail.
	Notifier Notifier
}

type Handler struct {
	store     jobs.Store
	runner    Submitter
	generator jobs.ReportGenerator
	extractor *patientctx.Extractor
	patients  *patients.Repository
	validate  *validator.Validate
	cfg       Config
	now       func() time.Time
}

func NewHandler(store jobs.Store, runner Submitter, generator jobs.ReportGenerator, extractor *patientctx.Extractor, patientRepo *patients.Repository, cfg Config) *Handler {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 10 * time.Minute
	}
	return &Handler{
		store:     store,
		runner:    runner,
		generator: generator,
		extractor: extractor,
		patients:  patientRepo,
		validate:  newValidator(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the public report endpoints. generate middlewares
// (rate limiting) run in front of POST /generate_report only.
func (h *Handler) RegisterRoutes(r gin.IRoutes, generate ...gin.HandlerFunc) {
	r.POST("/generate_report", chain(generate, h.GenerateReport)...)
	r.GET("/check_report/:report_id", h.CheckReport)
	r.GET("/check_report/:report_id/events", h.ReportEvents)
}

// RegisterAuthRoutes mounts the endpoints that act on the authenticated
// patient. r must already enforce login.RequireAuth.
func (h *Handler) RegisterAuthRoutes(r gin.IRoutes, generate ...gin.HandlerFunc) {
	r.POST("/generate-maternal-report", chain(generate, h.GenerateMaternalReport)...)
	r.GET("/generated-reports", h.ListGenerated)
}

// chain copies mw before appending so a caller's slice is never written to.
func chain(mw []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	return append(append(make([]gin.HandlerFunc, 0, len(mw)+1), mw...), last)
}

func (h *Handler) GenerateReport(c *gin.Context) {
	req, problems := decodeRequest(h.validate, c.Request.Body)
	if problems != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input data", "details": problems})
		return
	}
	patientContext, err := h.extractor.Extract(req.PatientData, req.PatientID)
	if errors.Is(err, patientctx.ErrPatientNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "patient not found in the provided data"})
		return
	}
	if err != nil {
		log.Printf("[reports] extract failed patient_id=%s err=%v", req.PatientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read patient data"})
		return
	}

	ctx := c.Request.Context()
	reportID := uuid.NewString()
	if err := h.store.Create(ctx, reportID, req.PatientID); err != nil {
		log.Printf("[reports] create job failed report_id=%s err=%v", reportID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create report job"})
		return
	}
	if err := h.runner.Submit(jobs.Task{JobID: reportID, PatientID: req.PatientID, Context: patientContext}); err != nil {
		log.Printf("[reports] submit rejected report_id=%s err=%v", reportID, err)
		if rerr := jobs.Reject(ctx, h.store, reportID, err); rerr != nil {
			log.Printf("[reports] could not finalise rejected job report_id=%s err=%v", reportID, rerr)
		}
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report service is busy, please retry later", "report_id": reportID})
		return
	}
	log.Printf("[reports] accepted report_id=%s patient_id=%s", reportID, req.PatientID)
	c.JSON(http.StatusAccepted, gin.H{
		"message":   "Report generation started",
		"report_id": reportID,
		"status":    jobs.StatusProcessing,
	})
}

func (h *Handler) CheckReport(c *gin.Context) {
	job, err := h.store.Get(c.Request.Context(), c.Param("report_id"))
	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		log.Printf("[reports] check failed report_id=%s err=%v", c.Param("report_id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ReportEvents streams the job record whenever its status changes and ends
// once the job is terminal.
func (h *Handler) ReportEvents(c *gin.Context) {
	id := c.Param("report_id")
	job, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.StreamTimeout)
	defer cancel()
	ch := make(chan sse.Event)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(h.cfg.PollInterval)
		defer ticker.Stop()
		last := jobs.Status("")
		for {
			if job.Status != last {
				b, err := json.Marshal(job)
				if err != nil {
					log.Printf("[reports] events encode failed report_id=%s err=%v", id, err)
					return
				}
				select {
				case ch <- sse.Event{Name: "status", Data: string(b)}:
				case <-ctx.Done():
					return
				}
				last = job.Status
			}
			if job.Status.Terminal() {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			next, err := h.store.Get(ctx, id)
			if err != nil {
				log.Printf("[reports] events poll failed report_id=%s err=%v", id, err)
				return
			}
			job = next
		}
	}()
	sse.Stream(c, ch)
}

func (h *Handler) GenerateMaternalReport(c *gin.Context) {
	patientID := login.PatientID(c)
	ctx := c.Request.Context()
	p, err := h.patients.Get(ctx, patientID)
	if errors.Is(err, patients.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Patient not found"})
		return
	}
	if err != nil {
		log.Printf("[reports] load patient failed patient_id=%s err=%v", patientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error generating report"})
		return
	}
	history, err := h.patients.Reports(ctx, patientID)
	if err != nil {
		log.Printf("[reports] load history failed patient_id=%s err=%v", patientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error generating report"})
		return
	}
	patientContext, err := h.extractor.Extract(patients.BuildDataset(p, history), patientID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Patient not found"})
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, h.cfg.SyncTimeout)
	defer cancel()
	res := h.generator.Generate(genCtx, patientContext)
	if res.Outcome == report.OutcomeTimeout {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Report generation timed out"})
		return
	}

	analysis, _ := json.Marshal(gin.H{"report_content": res.Content})
	now := h.now().UTC()
	stored, err := h.patients.AddReport(ctx, patients.MedicalReport{
		ReportID:        fmt.Sprintf("rag_%s_%d", patientID, now.UnixMilli()),
		PatientID:       patientID,
		Type:            "RAG",
		Category:        "Maternal Health Assessment",
		Date:            now.Format(time.RFC3339),
		FileURL:         "",
		Notes:           "Automatically generated maternal health report",
		AnalysisResults: analysis,
	})
	if err != nil {
		log.Printf("[reports] store generated report failed patient_id=%s err=%v", patientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error storing generated report"})
		return
	}
	log.Printf("[reports] sync report_id=%s patient_id=%s outcome=%s", stored.ReportID, patientID, res.Outcome)
	if h.cfg.Notifier != nil && p.Email != "" && res.Outcome != report.OutcomeError {
		go func(to, name, id string) {
			if err := h.cfg.Notifier.SendReportReady(to, name, id); err != nil {
				log.Printf("[reports] report ready mail failed report_id=%s err=%v", id, err)
			}
		}(p.Email, p.FirstName, stored.ReportID)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Report generated successfully",
		"report_id": stored.ReportID,
		"report":    res.Content,
	})
}

func (h *Handler) ListGenerated(c *gin.Context) {
	list, err := h.store.ListByPatient(c.Request.Context(), login.PatientID(c))
	if err != nil {
		log.Printf("[reports] list failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load reports"})
		return
	}
	c.JSON(http.StatusOK, list)
}
