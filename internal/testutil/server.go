package testutil

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/nishad/mgtk/internal/config"
)

// Server fakes the MGnify API, the sequence search service and the ENA
// portal and browser APIs on one httptest server.
type Server struct {
	*httptest.Server
	router *mux.Router

	mu sync.Mutex

	analyses []Analysis
	samples  map[string]Sample
	runs     map[string]Sample
	enaRuns  map[string][]ENARun
	enaAttrs map[string][]ENAAttribute
	hits     map[string]int

	// PageSize overrides the page_size requested by clients when set.
	PageSize int
	// CountOverride replaces meta.pagination.count of downloads collections.
	CountOverride *int
	// LoopNext makes every analyses page point back to the first page.
	LoopNext bool
	// AnalysesStatus, when set, answers every analyses page with this status.
	AnalysesStatus int

	// SearchResponse is the body returned by the sequence search endpoint.
	SearchResponse string
	// SearchForms records the forms posted to the sequence search endpoint.
	SearchForms []url.Values
}

// NewServer starts an empty fake service. It is closed with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		router:         mux.NewRouter(),
		samples:        make(map[string]Sample),
		runs:           make(map[string]Sample),
		enaRuns:        make(map[string][]ENARun),
		enaAttrs:       make(map[string][]ENAAttribute),
		hits:           make(map[string]int),
		SearchResponse: SearchResponse,
	}
	s.setupRoutes()
	s.router.Use(s.countingMiddleware)
	s.Server = httptest.NewServer(s.router)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyses", s.handleAnalyses).Methods("GET")
	api.HandleFunc("/analyses/{accession}/downloads", s.handleDownloads).Methods("GET")
	api.HandleFunc("/samples/{accession}", s.handleSample).Methods("GET")
	api.HandleFunc("/runs/{accession}", s.handleRun).Methods("GET")

	s.router.HandleFunc("/files/{analysis}/{alias}", s.handleFile).Methods("GET")
	s.router.HandleFunc("/sequence-search/phmmer", s.handleSearch).Methods("POST")
	s.router.HandleFunc("/ena/portal/api/search", s.handleENASearch).Methods("GET")
	s.router.HandleFunc("/ena/browser/api/xml/{accession}", s.handleENAXML).Methods("GET")
}

// Endpoints returns endpoints pointing at the fake service.
func (s *Server) Endpoints() config.Endpoints {
	return config.Endpoints{
		APIBase:         s.URL + "/api",
		SequenceSearch:  s.URL + "/sequence-search/phmmer",
		ENAPortalSearch: s.URL + "/ena/portal/api/search",
		ENABrowserXML:   s.URL + "/ena/browser/api/xml",
	}
}

// AddAnalyses registers analyses in collection order.
func (s *Server) AddAnalyses(analyses ...Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, analyses...)
}

// AddSample serves sample under /samples/{accession}.
func (s *Server) AddSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.Accession] = sample
}

// AddRun serves run under /runs/{run} with sample included.
func (s *Server) AddRun(run string, sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run] = sample
}

// AddENAStudy registers the read runs of a study.
func (s *Server) AddENAStudy(study string, runs ...ENARun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enaRuns[study] = append(s.enaRuns[study], runs...)
}

// AddENASample registers the XML attributes of a sample.
func (s *Server) AddENASample(sample string, attrs ...ENAAttribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enaAttrs[sample] = attrs
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// FileURL returns the URL a download is served from.
func (s *Server) FileURL(analysis, alias string) string {
	return s.URL + "/files/" + url.PathEscape(analysis) + "/" + url.PathEscape(alias)
}

func (s *Server) countingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AnalysesStatus != 0 {
		writeError(w, s.AnalysesStatus, "analyses unavailable")
		return
	}

	q := r.URL.Query()
	var matched []Analysis
	for _, a := range s.analyses {
		if study := q.Get("study_accession"); study != "" && a.Study != study {
			continue
		}
		if v := q.Get("pipeline_version"); v != "" && a.PipelineVersion != v {
			continue
		}
		matched = append(matched, a)
	}

	pageSize := s.PageSize
	if pageSize == 0 {
		pageSize, _ = strconv.Atoi(q.Get("page_size"))
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	pages := (len(matched) + pageSize - 1) / pageSize

	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))

	data := make([]any, 0, end-start)
	for _, a := range matched[start:end] {
		data = append(data, analysisResource(a))
	}

	var next any
	if page < pages {
		nq := url.Values{}
		for k, v := range q {
			nq[k] = v
		}
		nq.Set("page", strconv.Itoa(page+1))
		next = s.URL + r.URL.Path + "?" + nq.Encode()
	}
	if s.LoopNext {
		next = s.URL + r.URL.Path + "?" + q.Encode()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"links": map[string]any{"next": next},
		"meta": map[string]any{
			"pagination": map[string]any{"page": page, "pages": pages, "count": len(matched)},
		},
	})
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mux.Vars(r)["accession"]
	for _, a := range s.analyses {
		if a.ID != id {
			continue
		}
		if a.DownloadsStatus != 0 {
			writeError(w, a.DownloadsStatus, "downloads unavailable")
			return
		}
		data := make([]any, 0, len(a.Downloads))
		for _, d := range a.Downloads {
			data = append(data, map[string]any{
				"type": "analysis-downloads",
				"id":   d.Alias,
				"attributes": map[string]any{
					"alias":       d.Alias,
					"group-type":  d.GroupType,
					"description": map[string]any{"label": d.Description, "description": d.Description},
					"file-format": map[string]any{"name": "TSV", "extension": "tsv", "compression": false},
				},
				"links": map[string]any{"self": s.FileURL(a.ID, d.Alias)},
			})
		}
		count := len(data)
		if s.CountOverride != nil {
			count = *s.CountOverride
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  data,
			"links": map[string]any{"next": nil},
			"meta":  map[string]any{"pagination": map[string]any{"page": 1, "pages": 1, "count": count}},
		})
		return
	}
	writeError(w, http.StatusNotFound, "analysis not found")
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars := mux.Vars(r)
	for _, a := range s.analyses {
		if a.ID != vars["analysis"] {
			continue
		}
		for _, d := range a.Downloads {
			if d.Alias != vars["alias"] {
				continue
			}
			if d.Status != 0 {
				http.Error(w, "unavailable", d.Status)
				return
			}
			w.Header().Set("Content-Type", "text/tab-separated-values")
			fmt.Fprint(w, d.Content)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample, ok := s.samples[mux.Vars(r)["accession"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": sampleResource(sample)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := mux.Vars(r)["accession"]
	sample, ok := s.runs[run]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	doc := map[string]any{
		"data": map[string]any{
			"type":       "runs",
			"id":         run,
			"attributes": map[string]any{"accession": run},
			"relationships": map[string]any{
				"sample": map[string]any{"data": map[string]any{"type": "samples", "id": sample.Accession}},
			},
		},
	}
	if r.URL.Query().Get("include") == "sample" {
		doc["included"] = []any{sampleResource(sample)}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.SearchForms = append(s.SearchForms, r.PostForm)
	body := s.SearchResponse
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

var studyQuery = regexp.MustCompile(`^study_accession=(\S+) OR secondary_study_accession=(\S+)$`)

func (s *Server) handleENASearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	m := studyQuery.FindStringSubmatch(q.Get("query"))
	if q.Get("result") != "read_run" || m == nil || m[1] != m[2] {
		http.Error(w, "Invalid query", http.StatusBadRequest)
		return
	}
	runs, ok := s.enaRuns[m[1]]
	if !ok {
		// the portal answers unknown accessions with an empty 200
		w.WriteHeader(http.StatusOK)
		return
	}
	rows := make([]map[string]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, map[string]string{
			"run_accession":              run.Run,
			"secondary_sample_accession": run.SecondarySample,
			"sample_accession":           run.Sample,
			"depth":                      run.Depth,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

type xmlAttribute struct {
	Tag   string `xml:"TAG,omitempty"`
	Value string `xml:"VALUE"`
}

type xmlSample struct {
	XMLName    xml.Name       `xml:"SAMPLE"`
	Accession  string         `xml:"accession,attr"`
	Title      string         `xml:"TITLE"`
	Attributes []xmlAttribute `xml:"SAMPLE_ATTRIBUTES>SAMPLE_ATTRIBUTE"`
}

type xmlSampleSet struct {
	XMLName xml.Name  `xml:"SAMPLE_SET"`
	Sample  xmlSample `xml:"SAMPLE"`
}

func (s *Server) handleENAXML(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := mux.Vars(r)["accession"]
	attrs, ok := s.enaAttrs[acc]
	if !ok {
		http.NotFound(w, r)
		return
	}
	set := xmlSampleSet{Sample: xmlSample{Accession: acc, Title: "sample " + acc}}
	for _, a := range attrs {
		set.Sample.Attributes = append(set.Sample.Attributes, xmlAttribute{Tag: a.Tag, Value: a.Value})
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(set); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func analysisResource(a Analysis) map[string]any {
	rel := func(typ, id string) map[string]any {
		return map[string]any{"data": map[string]any{"type": typ, "id": id}}
	}
	return map[string]any{
		"type": "analysis-jobs",
		"id":   a.ID,
		"attributes": map[string]any{
			"accession":        a.ID,
			"pipeline-version": a.PipelineVersion,
			"experiment-type":  a.ExperimentType,
		},
		"relationships": map[string]any{
			"study":  rel("studies", a.Study),
			"run":    rel("runs", a.Run),
			"sample": rel("samples", a.Sample),
		},
	}
}

func sampleResource(s Sample) map[string]any {
	meta := make([]map[string]any, 0, len(s.Metadata))
	for _, m := range s.Metadata {
		meta = append(meta, map[string]any{"key": m.Key, "value": m.Value, "unit": m.Unit})
	}
	res := map[string]any{
		"type":       "samples",
		"id":         s.Accession,
		"attributes": map[string]any{"accession": s.Accession, "sample-metadata": meta},
	}
	if s.Biome != "" {
		res["relationships"] = map[string]any{
			"biome": map[string]any{"data": map[string]any{"type": "biomes", "id": s.Biome}},
		}
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]any{{"detail": message, "status": strconv.Itoa(status)}},
	})
}
