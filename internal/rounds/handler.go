package rounds

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"songrate/internal/auth"
	"songrate/internal/spotify"
	"songrate/pkg/models"
)

type Handler struct {
	Svc *Service
	// Write guards mutating routes, typically a rate limiter. Optional.
	Write gin.HandlerFunc
}

func NewHandler(svc *Service, write gin.HandlerFunc) *Handler {
	registerValidators()
	return &Handler{Svc: svc, Write: write}
}

var validatorsOnce sync.Once

func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("spotify_track", func(fl validator.FieldLevel) bool {
			return spotify.IsValidLink(fl.Field().String())
		}); err != nil {
			log.Printf("[rounds] register validator: %v", err)
		}
	})
}

// RegisterRoutes mounts /rates routes. rg must already authenticate.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	write := h.Write
	if write == nil {
		write = func(c *gin.Context) { c.Next() }
	}

	rg.GET("", h.list)
	rg.POST("", write, h.create)
	rg.GET("/:id", h.get)
	rg.POST("/:id", write, h.submitSongs)
	rg.PUT("/:id", write, h.submitRatings)
	rg.PUT("/:id/playlist", write, h.setPlaylist)
	rg.GET("/:id/results", h.results)
}

func callerFrom(c *gin.Context) (Caller, bool) {
	claims := auth.MustGetClaims(c)
	if claims == nil || claims.Username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return Caller{}, false
	}
	return Caller{Name: claims.Username, IsAdmin: claims.IsAdmin}, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
	case errors.Is(err, ErrDuplicateTitle):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrWrongStage), errors.Is(err, ErrNotComplete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotSubmitter):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidLink):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "expected": spotify.ExampleURL})
	case errors.Is(err, ErrInvalidRound),
		errors.Is(err, ErrSongCount),
		errors.Is(err, ErrUnknownSong),
		errors.Is(err, ErrOwnSong),
		errors.Is(err, ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("[rounds] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) list(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	out, err := h.Svc.ListRounds(c.Request.Context(), caller, h.Svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type createReq struct {
	Title              string          `json:"title" binding:"required,max=120"`
	SongCount          int             `json:"count" binding:"required,gt=0,lte=50"`
	SubmissionDeadline time.Time       `json:"date" binding:"required"`
	RatingDeadline     time.Time       `json:"end_date" binding:"required,gtfield=SubmissionDeadline"`
	Playlist           models.Playlist `json:"playlist"`
}

func (h *Handler) create(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, positive count, date and a later end_date required"})
		return
	}

	id, err := h.Svc.CreateRound(c.Request.Context(), caller, models.NewRound{
		Title:              req.Title,
		SongCount:          req.SongCount,
		SubmissionDeadline: req.SubmissionDeadline,
		RatingDeadline:     req.RatingDeadline,
		Playlist:           req.Playlist,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) get(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	view, err := h.Svc.GetRound(c.Request.Context(), caller, c.Param("id"), h.Svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type songsReq struct {
	Songs []string `json:"songs" binding:"required,min=1,dive,spotify_track"`
}

func (h *Handler) submitSongs(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req songsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "spotify_track" {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidLink.Error(), "expected": spotify.ExampleURL})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "songs must be a non-empty list of track links"})
		return
	}

	songs, err := h.Svc.SubmitSongs(c.Request.Context(), caller, c.Param("id"), req.Songs, h.Svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"songs": songs})
}

type ratingsReq struct {
	Rates        []RatingInput `json:"rates" binding:"dive"`
	SaveForLater bool          `json:"save_for_later"`
}

func (h *Handler) submitRatings(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req ratingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rates must be a list of {track_id, value}"})
		return
	}

	err := h.Svc.SubmitRatings(c.Request.Context(), caller, c.Param("id"), req.Rates, req.SaveForLater, h.Svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "finished": !req.SaveForLater})
}

func (h *Handler) setPlaylist(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req models.Playlist
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Svc.SetPlaylist(c.Request.Context(), caller, c.Param("id"), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) results(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	res, err := h.Svc.Results(c.Request.Context(), caller, c.Param("id"), h.Svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
