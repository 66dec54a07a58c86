package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board/boardtest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []domain.MailMessage
	keys     []string
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	var m domain.MailMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		return err
	}
	p.messages = append(p.messages, m)
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePublisher) sent() []domain.MailMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MailMessage(nil), p.messages...)
}

type testEnv struct {
	handler   *Handler
	store     *boardtest.MemoryStore
	publisher *fakePublisher
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.MaxRows = 2000
	cfg.RabbitMQ.Queue = "email_queue"
	cfg.RabbitMQ.PublishTimeout = 1
	cfg.Email.Recipients = []string{"lead@example.com", "ops@example.com"}
	cfg.Upload.MaxBytes = 1 << 20
	cfg.Upload.MaxReportedErrors = 5
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := boardtest.NewMemoryStore()
	b := board.New(store, boardtest.NewMemoryPreferences(), board.Options{
		ResubscribeDelay: 10 * time.Millisecond,
		Now:              func() time.Time { return time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC) },
	})
	b.Start()
	t.Cleanup(b.Close)

	publisher := &fakePublisher{}
	h, err := NewHandler(testConfig(), b, publisher)
	require.NoError(t, err)
	h.RegisterRoutes()

	return &testEnv{handler: h, store: store, publisher: publisher}
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()

	rec := httptest.NewRecorder()
	e.handler.Mux.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/schedule/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const sampleCSV = "Date,Name,Test,Location\n" +
	"2024-06-03,Bob,Density,Site B\n" +
	"2024-06-01,Alice,Density,\n" +
	"2024-06-02,Alice,Proctor,Site A\n"

func TestUploadSchedule(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, uploadRequest(t, "week.csv", sampleCSV))
	require.True(t, resp.Success, resp.Message)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 3, data.Count)
	assert.Empty(t, data.Errors)
	assert.Empty(t, data.Summary)

	entries := env.store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-06-01", entries[0].Date)
	assert.Nil(t, entries[0].Location)

	sent := env.publisher.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.MailTypeScheduleUpdated, sent[0].Type)
	assert.Equal(t, "lead@example.com", sent[0].To)
	assert.Equal(t, "ops@example.com", sent[1].To)
	assert.Equal(t, "email_queue", env.publisher.keys[0])
}

func TestUploadScheduleReportsRowErrors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, uploadRequest(t, "week.csv", "Date,Name,Test\n2024-06-01,Alice,Density\n2024-06-02,,Density\n"))
	require.True(t, resp.Success)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 1, data.Count)
	require.Len(t, data.Errors, 1)
	assert.Equal(t, 3, data.Errors[0].Row)
	assert.Contains(t, data.Summary, "第 3 行")
}

func TestUploadScheduleMissingColumns(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, uploadRequest(t, "week.csv", "Name,Test\nAlice,Density\n"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Date")
	assert.Empty(t, env.store.Entries())
	assert.Empty(t, env.publisher.sent())
}

func TestUploadScheduleNoValidRows(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, uploadRequest(t, "week.csv", "Date,Name,Test\nnot a date,Alice,Density\n"))
	assert.False(t, resp.Success)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 0, data.Count)
	assert.Len(t, data.Errors, 1)
}

func TestUploadScheduleWithoutFile(t *testing.T) {
	env := newTestEnv(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/schedule/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp := env.do(t, req)
	assert.False(t, resp.Success)
	assert.Equal(t, "请选择要上传的文件", resp.Message)
}

func TestUploadScheduleStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailWrites = errors.New("connection refused")

	resp := env.do(t, uploadRequest(t, "week.csv", sampleCSV))
	assert.False(t, resp.Success)
	assert.Empty(t, env.publisher.sent())
}

func TestUploadScheduleTooManyRows(t *testing.T) {
	env := newTestEnv(t)
	env.store.MaxRows = 2

	resp := env.do(t, uploadRequest(t, "week.csv", sampleCSV))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "2000")
}

func TestUploadSucceedsWhenPublishFails(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("channel closed")

	resp := env.do(t, uploadRequest(t, "week.csv", sampleCSV))
	assert.True(t, resp.Success)
	assert.Len(t, env.store.Entries(), 3)
}

func TestClearSchedule(t *testing.T) {
	env := newTestEnv(t)
	require.True(t, env.do(t, uploadRequest(t, "week.csv", sampleCSV)).Success)

	resp := env.do(t, httptest.NewRequest(http.MethodDelete, "/schedule", nil))
	require.True(t, resp.Success)
	assert.Empty(t, env.store.Entries())

	sent := env.publisher.sent()
	require.Len(t, sent, 4)
	assert.Equal(t, domain.MailTypeScheduleCleared, sent[3].Type)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/preferences", nil))
	var prefs domain.Preferences
	require.NoError(t, json.Unmarshal(resp.Data, &prefs))
	assert.Equal(t, domain.DefaultPreferences(), prefs)
}

func TestGetScheduleEntriesAndStatus(t *testing.T) {
	env := newTestEnv(t)
	require.True(t, env.do(t, uploadRequest(t, "week.csv", sampleCSV)).Success)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/entries", nil))
	var entries []domain.ScheduleEntry
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	assert.Len(t, entries, 3)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/status", nil))
	var status board.Status
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Ready)
	assert.Equal(t, 3, status.Count)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/meta", nil))
	var meta domain.ScheduleMeta
	require.NoError(t, json.Unmarshal(resp.Data, &meta))
	assert.Equal(t, 3, meta.Count)
}

func TestGetScheduleMetaBeforeUpload(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/meta", nil))
	assert.True(t, resp.Success)
	assert.Equal(t, "null", string(resp.Data))
}

func TestGetScheduleViews(t *testing.T) {
	env := newTestEnv(t)
	require.True(t, env.do(t, uploadRequest(t, "week.csv", sampleCSV)).Success)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/views?view=teamWeekly&week=2024-06-04", nil))
	require.True(t, resp.Success, resp.Message)

	var data struct {
		View        domain.ViewMode    `json:"view"`
		Preferences domain.Preferences `json:"preferences"`
		Views       struct {
			Person    string   `json:"person"`
			WeekDates []string `json:"weekDates"`
			People    []string `json:"people"`
		} `json:"views"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, domain.ViewTeamWeekly, data.View)
	assert.Equal(t, "2024-06-01", data.Views.WeekDates[0])
	assert.Equal(t, []string{"Alice", "Bob"}, data.Views.People)
	// 上传后当前用户默认为第一条记录的人
	assert.Equal(t, "Bob", data.Views.Person)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/views?person=Alice", nil))
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "Alice", data.Views.Person)
	assert.Equal(t, domain.ViewMySchedule, data.View)
}

func TestGetScheduleViewsValidatesQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{"view=calendar", "week=06/04/2024", "month=2024-13"} {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, "/schedule/views?"+query, nil))
		assert.False(t, resp.Success, query)
	}
}

func TestPreferencesArePerClient(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPatch, "/preferences", strings.NewReader(`{"viewMode":"monthly","testFilter":"Density"}`))
	req.Header.Set(ClientIDHeader, "laptop")
	resp := env.do(t, req)
	require.True(t, resp.Success, resp.Message)

	var prefs domain.Preferences
	require.NoError(t, json.Unmarshal(resp.Data, &prefs))
	assert.Equal(t, domain.ViewMonthly, prefs.ViewMode)
	assert.Equal(t, "Density", prefs.TestFilter)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/preferences", nil))
	require.NoError(t, json.Unmarshal(resp.Data, &prefs))
	assert.Equal(t, domain.ViewMySchedule, prefs.ViewMode)
	assert.Equal(t, domain.FilterAll, prefs.TestFilter)
}

func TestUpdatePreferencesRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"viewMode":"calendar"}`, `{"testFilter":""}`, `{"unknown":1}`, `not json`} {
		resp := env.do(t, httptest.NewRequest(http.MethodPatch, "/preferences", strings.NewReader(body)))
		assert.False(t, resp.Success, body)
	}
}

func TestClientIDTooLong(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/preferences", nil)
	req.Header.Set(ClientIDHeader, strings.Repeat("x", maxClientIDLen+1))
	resp := env.do(t, req)
	assert.False(t, resp.Success)
}

func TestStreamSchedule(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler.Mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/schedule/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan snapshotEvent, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev snapshotEvent
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				events <- ev
			}
		}
	}()

	select {
	case ev := <-events:
		assert.Empty(t, ev.Entries)
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到初始快照")
	}

	require.True(t, env.do(t, uploadRequest(t, "week.csv", sampleCSV)).Success)

	select {
	case ev := <-events:
		assert.Len(t, ev.Entries, 3)
		assert.Equal(t, 3, ev.Status.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到更新后的快照")
	}
}

func TestRecovererHandlesPanic(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Mux.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	env.handler.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
