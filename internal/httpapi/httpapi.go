// Package httpapi exposes the recognition engine over HTTP REST.
package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chordwise/seville/internal/chord"
	"github.com/chordwise/seville/internal/config"
	"github.com/chordwise/seville/internal/decode"
	"github.com/chordwise/seville/internal/feature"
	"github.com/chordwise/seville/internal/midifile"
	"github.com/chordwise/seville/internal/recognize"
	"github.com/chordwise/seville/internal/storage"
)

// maxUploadBytes caps a single MIDI upload.
const maxUploadBytes = 16 << 20

// Server provides the HTTP REST endpoints of the engine.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.DB
	router *gin.Engine
}

// RecognizeResponse is the payload returned for a recognized piece.
type RecognizeResponse struct {
	ContentHash string        `json:"content_hash"`
	Filename    string        `json:"filename"`
	Precision   float64       `json:"precision"`
	NFrames     int           `json:"n_frames"`
	Cached      bool          `json:"cached"`
	Spans       []decode.Span `json:"spans"`
}

// TemplateResponse describes one catalog entry.
type TemplateResponse struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Pitches  []int  `json:"pitches"`
	Inverted bool   `json:"inverted"`
}

// NewServer wires the routes. The returned server is ready to serve.
func NewServer(cfg *config.Config, logger *slog.Logger, db *storage.DB) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	s := &Server{cfg: cfg, logger: logger, db: db, router: router}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/api/catalog", s.handleCatalog)
	s.router.POST("/api/recognize", s.handleRecognize)
	s.router.GET("/api/analyses", s.handleListAnalyses)
	s.router.GET("/api/analyses/:hash", s.handleGetAnalysis)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if err := s.db.Ping(); err != nil {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleCatalog(c *gin.Context) {
	cat := chord.Default()
	templates := make([]TemplateResponse, 0, cat.Len())
	for i, t := range cat.Templates {
		templates = append(templates, TemplateResponse{
			Index:    i,
			Name:     t.Name,
			Pitches:  t.Pitches,
			Inverted: t.Inverted,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(templates), "templates": templates})
}

// handleRecognize accepts a MIDI file (multipart field "file" or raw
// body), recognizes its chords, and caches the result by content hash.
func (s *Server) handleRecognize(c *gin.Context) {
	precision := s.cfg.Precision
	if v := c.Query("precision"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid precision"})
			return
		}
		precision = p
	}

	data, filename, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	if c.Query("force") != "true" {
		if rec, err := s.db.GetAnalysis(contentHash, precision); err == nil {
			spans, err := rec.Spans()
			if err == nil {
				c.JSON(http.StatusOK, RecognizeResponse{
					ContentHash: contentHash,
					Filename:    rec.Filename,
					Precision:   precision,
					NFrames:     rec.NFrames,
					Cached:      true,
					Spans:       spans,
				})
				return
			}
			s.logger.Warn("dropping unreadable cached analysis", "hash", contentHash, "error", err)
		}
	}

	score, err := midifile.ParseBytes(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a readable MIDI file: " + err.Error()})
		return
	}

	spans, err := recognize.Chords(score, recognize.Options{Precision: precision})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, feature.ErrInvalidPrecision) || errors.Is(err, decode.ErrInvalidMeter) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if spans == nil {
		spans = []decode.Span{}
	}

	nFrames := 0
	if len(spans) > 0 {
		nFrames = spans[len(spans)-1].End + 1
	}

	rec, err := storage.NewAnalysisRecord(contentHash, filename, precision, nFrames, spans)
	if err == nil {
		err = s.db.UpsertAnalysis(rec)
	}
	if err != nil {
		s.logger.Error("failed to cache analysis", "hash", contentHash, "error", err)
	}

	c.JSON(http.StatusOK, RecognizeResponse{
		ContentHash: contentHash,
		Filename:    filename,
		Precision:   precision,
		NFrames:     nFrames,
		Spans:       spans,
	})
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.db.ListAnalyses(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"content_hash": rec.ContentHash,
			"filename":     rec.Filename,
			"precision":    rec.Precision,
			"n_frames":     rec.NFrames,
			"updated_at":   rec.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"analyses": out})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	precision := s.cfg.Precision
	if v := c.Query("precision"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid precision"})
			return
		}
		precision = p
	}

	rec, err := s.db.GetAnalysis(c.Param("hash"), precision)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	spans, err := rec.Spans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, RecognizeResponse{
		ContentHash: rec.ContentHash,
		Filename:    rec.Filename,
		Precision:   rec.Precision,
		NFrames:     rec.NFrames,
		Cached:      true,
		Spans:       spans,
	})
}

// readUpload pulls the MIDI bytes out of a multipart "file" field, or
// falls back to the raw request body.
func readUpload(c *gin.Context) ([]byte, string, error) {
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > maxUploadBytes {
			return nil, "", errors.New("file too large")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return nil, "", err
		}
		return data, fh.Filename, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty request: upload a MIDI file")
	}
	return data, "", nil
}
