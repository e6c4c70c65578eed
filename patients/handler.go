package patients

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"materna-backend/login"
	"materna-backend/patientctx"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler { return &Handler{repo: repo} }

// RegisterRoutes mounts the patient endpoints. r must already enforce
// login.RequireAuth.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/register-patient", h.RegisterPatient)
	r.GET("/patient-data", h.GetPatient)
	r.POST("/store-report", h.StoreReport)
	r.GET("/medical-reports", h.ListReports)
}

// RegisterRequest is the registration form. Numeric fields may arrive as
// strings or numbers.
type RegisterRequest struct {
	FirstName             string            `json:"firstName"`
	LastName              string            `json:"lastName"`
	Email                 string            `json:"email"`
	PhoneNumber           patientctx.Scalar `json:"phoneNumber"`
	DOB                   string            `json:"dob"`
	Gender                string            `json:"gender"`
	Address               string            `json:"address"`
	EmergencyContact      string            `json:"emergencyContact"`
	EmergencyPhone        patientctx.Scalar `json:"emergencyPhone"`
	Height                patientctx.Scalar `json:"height"`
	PreWeight             patientctx.Scalar `json:"preWeight"`
	CurrentWeight         patientctx.Scalar `json:"currentWeight"`
	BloodGroup            string            `json:"bloodGroup"`
	LMP                   string            `json:"lmp"`
	DueDate               string            `json:"dueDate"`
	PrimaryProvider       string            `json:"primaryProvider"`
	PreferredHospital     string            `json:"preferredHospital"`
	Gravida               patientctx.Scalar `json:"gravida"`
	Para                  patientctx.Scalar `json:"para"`
	PreexistingConditions string            `json:"preexistingConditions"`
}

var errBadNumber = errors.New("bad number")

func (req RegisterRequest) toPatient(patientID string) (Patient, string) {
	p := Patient{
		PatientID:             patientID,
		FirstName:             strings.TrimSpace(req.FirstName),
		LastName:              strings.TrimSpace(req.LastName),
		Email:                 strings.TrimSpace(req.Email),
		DOB:                   req.DOB,
		Gender:                req.Gender,
		Address:               req.Address,
		EmergencyContact:      req.EmergencyContact,
		BloodGroup:            req.BloodGroup,
		LMP:                   strings.TrimSpace(req.LMP),
		DueDate:               req.DueDate,
		PrimaryProvider:       req.PrimaryProvider,
		PreferredHospital:     req.PreferredHospital,
		PreexistingConditions: req.PreexistingConditions,
	}
	var err error
	if p.PhoneNumber, err = phone(req.PhoneNumber); err != nil {
		return p, "Contact number must be a valid integer"
	}
	if p.EmergencyPhone, err = phone(req.EmergencyPhone); err != nil {
		return p, "Emergency number must be a valid integer"
	}
	const numbersMsg = "Height, weights, gravida, and para must be valid numbers"
	if p.HeightCM, err = optFloat(req.Height); err != nil {
		return p, numbersMsg
	}
	if p.PrePregnancyWeight, err = optFloat(req.PreWeight); err != nil {
		return p, numbersMsg
	}
	if p.CurrentWeight, err = optFloat(req.CurrentWeight); err != nil {
		return p, numbersMsg
	}
	if p.Gravida, err = optInt(req.Gravida); err != nil {
		return p, numbersMsg
	}
	if p.Para, err = optInt(req.Para); err != nil {
		return p, numbersMsg
	}
	if p.FirstName == "" || p.LastName == "" || p.Email == "" || p.LMP == "" {
		return p, "Missing required fields"
	}
	return p, ""
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	patientID := login.PatientID(c)
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid patient data"})
		return
	}
	p, problem := req.toPatient(patientID)
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": problem})
		return
	}
	if _, err := h.repo.Save(c.Request.Context(), p); err != nil {
		log.Printf("[patients] save failed patient_id=%s err=%v", patientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error saving patient data"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Patient data saved successfully", "patient_id": patientID})
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), login.PatientID(c))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Patient not found"})
		return
	}
	if err != nil {
		log.Printf("[patients] get failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error loading patient data"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type StoreReportRequest struct {
	Type            string          `json:"type"`
	Category        string          `json:"category"`
	Date            string          `json:"date"`
	FileURL         string          `json:"fileUrl"`
	Notes           string          `json:"notes"`
	AnalysisResults json.RawMessage `json:"analysisResults"`
}

func (h *Handler) StoreReport(c *gin.Context) {
	patientID := login.PatientID(c)
	var req StoreReportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" || req.Category == "" || req.Date == "" || req.FileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing required fields"})
		return
	}
	ctx := c.Request.Context()
	ok, err := h.repo.Exists(ctx, patientID)
	if err != nil {
		log.Printf("[patients] lookup failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error storing report"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Patient not found"})
		return
	}
	m, err := h.repo.AddReport(ctx, MedicalReport{
		ReportID:        strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		PatientID:       patientID,
		Type:            req.Type,
		Category:        req.Category,
		Date:            req.Date,
		FileURL:         req.FileURL,
		Notes:           req.Notes,
		AnalysisResults: req.AnalysisResults,
	})
	if err != nil {
		log.Printf("[patients] store report failed patient_id=%s err=%v", patientID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error storing report"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report stored successfully", "report_id": m.ReportID})
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.repo.Reports(c.Request.Context(), login.PatientID(c))
	if err != nil {
		log.Printf("[patients] list reports failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error loading reports"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

func phone(v patientctx.Scalar) (string, error) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "", nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return "", errBadNumber
	}
	return s, nil
}

func optFloat(v patientctx.Scalar) (*float64, error) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errBadNumber
	}
	return &f, nil
}

func optInt(v patientctx.Scalar) (*int, error) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return nil, errBadNumber
	}
	return &i, nil
}
