package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/failscope/internal/catalog"
	"github.com/hyperjump/failscope/internal/embedding"
	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/internal/search"
	"github.com/hyperjump/failscope/internal/source"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.uber.org/zap"
)

// Error codes in ErrorResponse.Code.
const (
	CodeBadRequest     = "bad_request"
	CodeNoEmbedding    = "no_embedding_available"
	CodeProviderFailed = "provider_error"
	CodeLoadFailed     = "load_error"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", req.Query),
		zap.Int("top_k", req.TopK),
		zap.Bool("provider_key", req.EmbeddingAPIKey != ""),
	)
	response, err := s.deps.Engine.Search(r.Context(), &req)
	if err != nil {
		s.respondSearchError(w, r, &req, err)
		return
	}
	if id := r.Header.Get(RequestIDHeader); id != "" {
		response.RequestID = id
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) respondSearchError(w http.ResponseWriter, r *http.Request, req *models.SearchRequest, err error) {
	var (
		providerErr *embedding.ProviderError
		loadErr     *source.LoadError
	)
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, search.ErrNoEmbeddingAvailable):
		resp := models.ErrorResponse{Error: err.Error(), Code: CodeNoEmbedding}
		if s.deps.Suggester != nil {
			suggestions, serr := s.deps.Suggester.SuggestTerms(r.Context(), req.Query)
			if serr != nil {
				s.logger.Warn("suggestions unavailable", zap.Error(serr))
			}
			resp.Suggestions = suggestions
		}
		s.respondJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &providerErr):
		s.logger.Error("search failed", zap.Error(err))
		status := http.StatusBadGateway
		if providerErr.StatusCode == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		s.respondError(w, status, CodeProviderFailed, err.Error())
	case errors.As(err, &loadErr):
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, CodeLoadFailed, err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.ListOptions{
		Category: q.Get("category"),
		Severity: q.Get("severity"),
		Tags:     utils.SplitList(q.Get("tags")),
		Query:    q.Get("q"),
	}
	for name, dst := range map[string]*int{"year": &opts.Year, "offset": &opts.Offset, "limit": &opts.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}
	list, err := s.deps.Catalog.List(r.Context(), opts)
	if err != nil {
		s.respondLoadError(w, "list incidents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inc, err := s.deps.Catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, CodeNotFound, "incident not found")
		return
	}
	if err != nil {
		s.respondLoadError(w, "get incident failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, inc)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Catalog.Counts(r.Context())
	if err != nil {
		s.respondLoadError(w, "category counts failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, counts)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.deps.Catalog.Patterns(r.Context())
	if err != nil {
		s.respondLoadError(w, "patterns failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Catalog.Tags(r.Context())
	if err != nil {
		s.respondLoadError(w, "tags failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, tags)
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := s.deps.Terms.Terms(r.Context())
	if err != nil {
		s.respondLoadError(w, "terms failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"terms": terms, "total": len(terms)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports cache state without triggering any load.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"source": s.deps.Source,
	}
	if s.deps.Embeddings != nil {
		resp["embeddings"] = map[string]interface{}{
			"loaded":     s.deps.Embeddings.Loaded(),
			"records":    s.deps.Embeddings.Size(),
			"dimensions": s.deps.Embeddings.Dimensions(),
		}
	}
	if s.deps.Terms != nil {
		resp["hybrid_lookup"] = map[string]interface{}{
			"loaded": s.deps.Terms.Loaded(),
			"terms":  s.deps.Terms.Size(),
		}
	}
	if s.deps.Catalog != nil {
		resp["catalog"] = map[string]interface{}{
			"loaded":    s.deps.Catalog.Loaded(),
			"incidents": s.deps.Catalog.Size(),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondLoadError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	var loadErr *source.LoadError
	if errors.As(err, &loadErr) {
		s.respondError(w, http.StatusBadGateway, CodeLoadFailed, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, CodeInternal, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}
