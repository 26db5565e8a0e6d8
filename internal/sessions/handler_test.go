package sessions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"certiresume-backend/internal/bootstrap"
	"certiresume-backend/internal/extraction"
	"certiresume-backend/internal/shared/config"
)

// textEngine parses the uploaded payload as plain text, so tests can drive
// the full pipeline without real PDFs.
type textEngine struct{}

func (textEngine) Extract(ctx context.Context, data []byte, mimeType string) (extraction.Fields, error) {
	return extraction.ParseFields(string(data)), nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		MaxUploadBytes:  1 << 20,
		SessionTTL:      time.Hour,
		ResumeTemplates: []string{"modern", "classic", "creative"},
	}
}

func buildTestApp(t *testing.T, cfg config.Config) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := bootstrap.Build(cfg, bootstrap.WithEngine(textEngine{}))
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(payload)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if created.ID == "" {
		t.Fatal("empty session id")
	}
	return created.ID
}

type filePart struct {
	name        string
	contentType string
	content     []byte
}

func uploadFile(t *testing.T, router http.Handler, sessionID, fileName, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	return uploadBatch(t, router, sessionID, []filePart{{name: fileName, contentType: contentType, content: content}})
}

func uploadBatch(t *testing.T, router http.Handler, sessionID string, parts []filePart) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		part, err := writer.CreatePart(map[string][]string{
			"Content-Disposition": {`form-data; name="files"; filename="` + p.name + `"`},
			"Content-Type":        {p.contentType},
		})
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(p.content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/certificates", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func waitForTerminal(t *testing.T, router http.Handler, sessionID string, count int) []map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/certificates", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("list certificates: status %d", resp.Code)
		}
		var listed struct {
			Entries []map[string]any `json:"entries"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
			t.Fatalf("decode entries: %v", err)
		}
		if len(listed.Entries) == count {
			terminal := 0
			for _, entry := range listed.Entries {
				switch entry["status"] {
				case "completed", "failed", "cancelled":
					terminal++
				}
			}
			if terminal == count {
				return listed.Entries
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("entries never reached a terminal status")
	return nil
}

const certText = `Advanced Go Programming
Issued by: Gopher Academy
Awarded to: Jane Smith
Skills: Go, Concurrency, SQL
March 12, 2024`

const degreeText = `Bachelor of Science in Computer Engineering
This certifies that Jane Smith has completed the program.
2019-06-30`

func TestCertificatePipelineEndToEnd(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	router := app.Router
	sessionID := createSession(t, router)

	if resp := uploadFile(t, router, sessionID, "gopher.pdf", "application/pdf", []byte(certText)); resp.Code != http.StatusCreated {
		t.Fatalf("upload 1: status %d: %s", resp.Code, resp.Body.String())
	}
	if resp := uploadFile(t, router, sessionID, "degree.pdf", "application/pdf", []byte(degreeText)); resp.Code != http.StatusCreated {
		t.Fatalf("upload 2: status %d: %s", resp.Code, resp.Body.String())
	}

	entries := waitForTerminal(t, router, sessionID, 2)
	for _, entry := range entries {
		if entry["status"] != "completed" {
			t.Fatalf("entry %v not completed: %v", entry["fileName"], entry["status"])
		}
	}

	// Assemble and verify merged fields.
	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/assemble", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("assemble: status %d: %s", resp.Code, resp.Body.String())
	}
	var draft struct {
		FullName struct {
			Value      string `json:"value"`
			UserEdited bool   `json:"userEdited"`
		} `json:"fullName"`
		Skills     []string         `json:"skills"`
		Experience []map[string]any `json:"experience"`
		Education  []map[string]any `json:"education"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.FullName.Value != "Jane Smith" {
		t.Errorf("fullName = %q", draft.FullName.Value)
	}
	if len(draft.Skills) != 3 {
		t.Errorf("skills = %v", draft.Skills)
	}
	if len(draft.Experience) != 1 || len(draft.Education) != 1 {
		t.Errorf("experience = %d, education = %d", len(draft.Experience), len(draft.Education))
	}

	// Edit a field, then re-assemble: the edit must survive. The response
	// carries one merged skills list, user-added skills after assembled ones.
	patch := map[string]any{"fullName": "Janet S. Smith", "skills": []string{"Public Speaking"}}
	patchResp := doJSON(t, router, http.MethodPatch, "/api/v1/sessions/"+sessionID+"/draft", patch)
	if patchResp.Code != http.StatusOK {
		t.Fatalf("patch draft: status %d: %s", patchResp.Code, patchResp.Body.String())
	}
	rawPatch := patchResp.Body.String()
	if strings.Contains(rawPatch, "userSkills") {
		t.Errorf("draft response exposes userSkills: %s", rawPatch)
	}
	var patched struct {
		Skills []string `json:"skills"`
	}
	if err := json.Unmarshal([]byte(rawPatch), &patched); err != nil {
		t.Fatalf("decode patched draft: %v", err)
	}
	if len(patched.Skills) != 4 || patched.Skills[3] != "Public Speaking" {
		t.Errorf("merged skills = %v", patched.Skills)
	}
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/assemble", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("re-assemble: status %d", resp.Code)
	}
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.FullName.Value != "Janet S. Smith" || !draft.FullName.UserEdited {
		t.Errorf("fullName after re-assemble = %+v", draft.FullName)
	}

	// Render.
	resp = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/render?template=modern", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("render: status %d: %s", resp.Code, resp.Body.String())
	}
	var doc struct {
		TemplateID string `json:"templateId"`
		Sections   []struct {
			Title string `json:"title"`
			Kind  string `json:"kind"`
		} `json:"sections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.TemplateID != "modern" || len(doc.Sections) == 0 {
		t.Errorf("document = %+v", doc)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/render?template=brutalist", nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown template: status %d, want 404", resp.Code)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	sessionID := createSession(t, app.Router)

	resp := uploadFile(t, app.Router, sessionID, "resume.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("doc"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Error.Code != "UnsupportedFormat" {
		t.Errorf("code = %q, want UnsupportedFormat", body.Error.Code)
	}
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadBytes = 16
	app := buildTestApp(t, cfg)
	sessionID := createSession(t, app.Router)

	resp := uploadFile(t, app.Router, sessionID, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 64))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Error.Code != "OversizeFile" {
		t.Errorf("code = %q, want OversizeFile", body.Error.Code)
	}
}

func TestUploadMixedBatchCreatesAcceptedEntries(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadBytes = 256
	app := buildTestApp(t, cfg)
	router := app.Router
	sessionID := createSession(t, router)

	resp := uploadBatch(t, router, sessionID, []filePart{
		{name: "gopher.pdf", contentType: "application/pdf", content: []byte(certText)},
		{name: "degree.pdf", contentType: "application/pdf", content: []byte(degreeText)},
		{name: "big.pdf", contentType: "application/pdf", content: bytes.Repeat([]byte("x"), 512)},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Entries    []map[string]any    `json:"entries"`
		Rejections []map[string]string `json:"rejections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(body.Entries))
	}
	if len(body.Rejections) != 1 {
		t.Fatalf("rejections = %v, want exactly one", body.Rejections)
	}
	if body.Rejections[0]["file"] != "big.pdf" || body.Rejections[0]["reason"] != "OversizeFile" {
		t.Errorf("rejection = %v", body.Rejections[0])
	}

	entries := waitForTerminal(t, router, sessionID, 2)
	for _, entry := range entries {
		if entry["status"] != "completed" {
			t.Errorf("entry %v status = %v, want completed", entry["fileName"], entry["status"])
		}
	}
}

func TestRemoveCompletedEntry(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	router := app.Router
	sessionID := createSession(t, router)

	if resp := uploadFile(t, router, sessionID, "gopher.pdf", "application/pdf", []byte(certText)); resp.Code != http.StatusCreated {
		t.Fatalf("upload: status %d", resp.Code)
	}
	entries := waitForTerminal(t, router, sessionID, 1)
	entryID, _ := entries[0]["id"].(string)
	if entryID == "" {
		t.Fatal("missing entry id")
	}

	resp := doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+sessionID+"/certificates/"+entryID, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d, want 204", resp.Code)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID+"/certificates", nil)
	var listed struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(listed.Entries) != 0 {
		t.Errorf("entries = %v, want none", listed.Entries)
	}
}

func TestSessionIsolationBetweenUsers(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	router := app.Router
	sessionID := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	req.Header.Set("X-Guest-Id", "another-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign session", resp.Code)
	}
}

func TestAssembleEmptySessionYieldsEmptyDraft(t *testing.T) {
	app := buildTestApp(t, testConfig(t))
	sessionID := createSession(t, app.Router)

	resp := doJSON(t, app.Router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/assemble", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("assemble: status %d, want 200", resp.Code)
	}
	var draft struct {
		FullName struct {
			Value string `json:"value"`
		} `json:"fullName"`
		Skills []string `json:"skills"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.FullName.Value != "" || len(draft.Skills) != 0 {
		t.Errorf("draft = %+v, want empty", draft)
	}
}
