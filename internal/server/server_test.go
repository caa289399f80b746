package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/matcher"
	"github.com/spigell/nls-advisor/internal/segment"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

const surveyLesson = `Hoạt động 1: Khởi động
Giáo viên đặt câu hỏi gợi mở về thói quen ngủ của học sinh.
Hoạt động 2: Khảo sát
Học sinh sử dụng Google Form để khảo sát ý kiến lớp về thói quen ngủ.`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	table, err := taxonomy.NewTable([]taxonomy.CompetencyEntry{
		{Code: "3.1TC1a", Tier: taxonomy.TierTC1, Domain: "3", Description: "Tạo và chỉnh sửa nội dung số đơn giản như văn bản, hình ảnh, bài trình chiếu."},
		{Code: "5.3TC1a", Tier: taxonomy.TierTC1, Domain: "5", Description: "Sử dụng công cụ số để khảo sát ý kiến, thu thập và chia sẻ kết quả."},
		{Code: "5.3TC2a", Tier: taxonomy.TierTC2, Domain: "5", Description: "Sử dụng công cụ số để khảo sát ý kiến, thu thập, phân tích và chia sẻ kết quả."},
	}, map[string]string{"3": "Sáng tạo nội dung số", "5": "Giải quyết vấn đề"})
	require.NoError(t, err)

	profiles, err := taxonomy.NewProfiles(
		taxonomy.SubjectProfile{Name: "KHTN", Triggers: []string{"google form"}},
		taxonomy.SubjectProfile{Name: "Văn", DefaultCode: "3.1TC1a"},
	)
	require.NoError(t, err)

	pipeline := analysis.New(table, profiles, []analysis.Stage{
		analysis.NewSegment(segment.New(segment.Config{})),
		analysis.NewHeuristic(matcher.New(matcher.DefaultConfig()), 0),
		analysis.NewResolve(),
	}, nil, analysis.Options{})

	srv := New(Config{}, pipeline, table, profiles, taxonomy.TierTC1, prometheus.NewRegistry(), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func uploadForm(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func postAnalyze(t *testing.T, ts *httptest.Server, fields map[string]string, filename string, content []byte) *http.Response {
	t.Helper()

	body, contentType := uploadForm(t, fields, filename, content)
	resp, err := http.Post(ts.URL+"/v1/analyze", contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) apiError {
	t.Helper()

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Error
}

func TestAnalyzeTextUpload(t *testing.T) {
	ts := newTestServer(t)

	resp := postAnalyze(t, ts, map[string]string{"subject": "khtn", "tier": "tc1"}, "plan.txt", []byte(surveyLesson))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var report struct {
		ID      string           `json:"id"`
		Subject string           `json:"subject"`
		Tier    string           `json:"tier"`
		Outcome string           `json:"outcome"`
		Results []matcher.Result `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "KHTN", report.Subject)
	assert.Equal(t, "TC1", report.Tier)
	assert.Equal(t, "matched", report.Outcome)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "5.3TC1a", report.Results[0].Code)
	assert.True(t, report.Results[0].Found)
}

func TestAnalyzeRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		status   int
		code     string
	}{
		{
			name:     "missing subject",
			fields:   map[string]string{},
			filename: "plan.txt",
			content:  []byte(surveyLesson),
			status:   http.StatusBadRequest,
			code:     "INVALID_ARGUMENT",
		},
		{
			name:     "unknown subject",
			fields:   map[string]string{"subject": "Thiên văn"},
			filename: "plan.txt",
			content:  []byte(surveyLesson),
			status:   http.StatusBadRequest,
			code:     "INVALID_ARGUMENT",
		},
		{
			name:     "unknown tier",
			fields:   map[string]string{"subject": "KHTN", "tier": "TC9"},
			filename: "plan.txt",
			content:  []byte(surveyLesson),
			status:   http.StatusBadRequest,
			code:     "INVALID_ARGUMENT",
		},
		{
			name:   "missing file",
			fields: map[string]string{"subject": "KHTN"},
			status: http.StatusBadRequest,
			code:   "INVALID_ARGUMENT",
		},
		{
			name:     "unsupported extension",
			fields:   map[string]string{"subject": "KHTN"},
			filename: "plan.exe",
			content:  []byte(surveyLesson),
			status:   http.StatusUnsupportedMediaType,
			code:     "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:     "broken pdf",
			fields:   map[string]string{"subject": "KHTN"},
			filename: "plan.pdf",
			content:  []byte("%PDF-1.4\nnot really a pdf"),
			status:   http.StatusUnprocessableEntity,
			code:     "UNREADABLE_DOCUMENT",
		},
		{
			name:     "short text",
			fields:   map[string]string{"subject": "KHTN"},
			filename: "plan.txt",
			content:  []byte("Học sinh dùng Google Form."),
			status:   http.StatusUnprocessableEntity,
			code:     "INSUFFICIENT_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postAnalyze(t, ts, tt.fields, tt.filename, tt.content)
			assert.Equal(t, tt.status, resp.StatusCode)
			apiErr := decodeError(t, resp)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestAnalyzeNoMatchIsNotAnError(t *testing.T) {
	ts := newTestServer(t)

	lesson := "Hoạt động 1: Hát\nHọc sinh luyện hát bài hát mới theo nhóm và biểu diễn trước lớp."
	resp := postAnalyze(t, ts, map[string]string{"subject": "KHTN"}, "plan.md", []byte(lesson))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Outcome string           `json:"outcome"`
		Results []matcher.Result `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "no_match", report.Outcome)
	assert.Empty(t, report.Results)
}

func TestSubjects(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/subjects")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Subjects []taxonomy.SubjectProfile `json:"subjects"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Subjects, 2)
	assert.Equal(t, "KHTN", body.Subjects[0].Name)
}

func TestCompetencies(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/competencies?tier=TC2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list competencyList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, taxonomy.TierTC2, list.Tier)
	require.Len(t, list.Competencies, 1)
	assert.Equal(t, "5.3TC2a", list.Competencies[0].Code)
	assert.Equal(t, "Giải quyết vấn đề", list.Domains["5"])
}

func TestCompetencyLookup(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/competencies/TC1/5.3TC1a")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entry taxonomy.CompetencyEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	assert.Equal(t, "5.3TC1a", entry.Code)

	// A code from another tier is not visible.
	other, err := http.Get(ts.URL + "/v1/competencies/TC2/5.3TC1a")
	require.NoError(t, err)
	defer other.Body.Close()
	assert.Equal(t, http.StatusNotFound, other.StatusCode)

	apiErr := decodeError(t, other)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, taxonomy.NotFoundRequirement, details["requirement"])

	badTier, err := http.Get(ts.URL + "/v1/competencies/TC7/5.3TC1a")
	require.NoError(t, err)
	defer badTier.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badTier.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	resp := postAnalyze(t, ts, map[string]string{"subject": "KHTN"}, "plan.txt", []byte(surveyLesson))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	require.Equal(t, http.StatusOK, metrics.StatusCode)

	raw, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `nls_analyses_total{outcome="matched"} 1`)
	assert.Contains(t, string(raw), `nls_extraction_total{status="ok"} 1`)
	assert.Contains(t, string(raw), `http_requests_total{method="POST",route="/v1/analyze",status="200"} 1`)
}
