package predict

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"materna-backend/metrics"
)

const maxUpload = 20 << 20

type Handler struct {
	orientation Classifier
	plane       Classifier
}

func NewHandler(orientation, plane Classifier) *Handler {
	return &Handler{orientation: orientation, plane: plane}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/predict", h.Predict)
}

func (h *Handler) Predict(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		// the web uploader posts the field as "image"
		fh, err = c.FormFile("image")
	}
	if err != nil {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	if strings.TrimSpace(fh.Filename) == "" {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
		return
	}
	if mt := mimetype.Detect(raw); !strings.HasPrefix(mt.String(), "image/") {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Please upload an image."})
		return
	}
	if h.orientation == nil || h.plane == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image classifiers are not configured"})
		return
	}
	input, err := Preprocess(bytes.NewReader(raw))
	if err != nil {
		metrics.RecordPrediction("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported or corrupt image"})
		return
	}

	var orientation, plane Prediction
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		orientation, err = Classify(ctx, h.orientation, OrientationLabels, input)
		return err
	})
	g.Go(func() error {
		var err error
		plane, err = Classify(ctx, h.plane, PlaneLabels, input)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("[predict] inference failed file=%s err=%v", fh.Filename, err)
		metrics.RecordPrediction("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
		return
	}
	metrics.RecordPrediction("ok")
	c.JSON(http.StatusOK, gin.H{"orientation": orientation, "plane": plane})
}
