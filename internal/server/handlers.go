package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/internal/pipeline"
	"github.com/shouni/go-flowql/pkg/httpclient"
	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/summarize"
	"github.com/shouni/go-flowql/pkg/types"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type generateQuestionsRequest struct {
	BusinessSummary *types.BusinessProfile `json:"businessSummary"`
}

type generateQuestionsResponse struct {
	Questions    []string           `json:"questions"`
	BusinessType types.BusinessType `json:"businessType"`
	Degraded     string             `json:"degraded,omitempty"`
}

type queryRequest struct {
	Questions   []string `json:"questions"`
	CompanyName string   `json:"companyName"`
	URL         string   `json:"url"`
}

type engineCell struct {
	LLM          string `json:"llm"`
	Result       bool   `json:"result"`
	Status       string `json:"status"`
	Response     string `json:"response"`
	ResponseTime int64  `json:"responseTime"`
}

type queryRow struct {
	Query   string       `json:"query"`
	Results []engineCell `json:"results"`
}

type queryResponse struct {
	Success bool       `json:"success"`
	Data    []queryRow `json:"data"`
	Cached  bool       `json:"cached"`
}

type engineStatus struct {
	Name            string `json:"name"`
	APIKeyAvailable bool   `json:"apiKeyAvailable"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze handles POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "URL is required"})
		return
	}

	rep, err := s.analyzer.Run(r.Context(), req.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, pipeline.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid URL format", Details: err.Error()})
	case httpclient.IsNetworkError(err):
		s.logger.Warn("開始URLの取得に失敗しました", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to fetch website", Details: err.Error()})
	default:
		s.logger.Error("解析に失敗しました", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to analyze website", Details: err.Error()})
	}
}

// handleGenerateQuestions handles POST /api/generate-questions
func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateQuestionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.BusinessSummary == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Business summary is required"})
		return
	}

	set := s.generator.Generate(r.Context(), summarize.NormalizeProfile(*req.BusinessSummary))
	resp := generateQuestionsResponse{Questions: set.Questions, BusinessType: set.BusinessType}
	if set.Degraded {
		resp.Degraded = set.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQuery handles POST /api/llm/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Questions) == 0 || strings.TrimSpace(req.CompanyName) == "" || strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Questions, company name, and URL are required"})
		return
	}

	results := s.verifier.Verify(r.Context(), req.Questions, req.CompanyName)

	resp := queryResponse{Success: true, Data: make([]queryRow, 0, len(results))}
	for _, res := range results {
		row := queryRow{Query: res.Question, Results: make([]engineCell, 0, len(res.PerEngineResult))}
		for _, c := range res.PerEngineResult {
			row.Results = append(row.Results, engineCell{
				LLM:          c.EngineName,
				Result:       c.Matched,
				Status:       report.Symbol(c),
				Response:     c.ResponseText,
				ResponseTime: c.ResponseTimeMs,
			})
		}
		resp.Data = append(resp.Data, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEngines handles GET /api/llm/engines
func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	out := make([]engineStatus, 0, len(s.engines))
	for _, e := range s.engines {
		out = append(out, engineStatus{Name: e.Name(), APIKeyAvailable: e.Available()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body", Details: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
