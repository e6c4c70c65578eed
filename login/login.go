package login

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// PatientIDKey is the gin context key holding the authenticated patient id.
const PatientIDKey = "patient_id"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	repo   *Repository
	tokens *Tokens
}

func NewHandler(repo *Repository, tokens *Tokens) *Handler {
	return &Handler{repo: repo, tokens: tokens}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
}

func (h *Handler) Signup(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password is too long"})
		return
	}
	u, err := h.repo.CreateUser(c.Request.Context(), creds.Username, string(hash))
	if errors.Is(err, ErrUsernameTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username already exists"})
		return
	}
	if err != nil {
		log.Printf("[login] signup failed username=%s err=%v", creds.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create user"})
		return
	}
	log.Printf("[login] signup user_id=%s patient_id=%s", u.UserID, u.PatientID)
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "patient_id": u.PatientID})
}

func (h *Handler) Login(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	u, err := h.repo.GetByUsername(c.Request.Context(), strings.TrimSpace(creds.Username))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Printf("[login] lookup failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login unavailable"})
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	token, _, err := h.tokens.Sign(u.PatientID)
	if err != nil {
		log.Printf("[login] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "patient_id": u.PatientID})
}

// RequireAuth rejects requests without a valid bearer token and stores the
// patient id under PatientIDKey. The token expiry is echoed in
// X-Token-Expires-At.
func RequireAuth(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		patientID, exp, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !exp.IsZero() {
			c.Header("X-Token-Expires-At", strconv.FormatInt(exp.Unix(), 10))
		}
		c.Set(PatientIDKey, patientID)
		c.Next()
	}
}

// PatientID returns the authenticated patient id set by RequireAuth.
func PatientID(c *gin.Context) string {
	return c.GetString(PatientIDKey)
}
