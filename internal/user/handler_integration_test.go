package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/boxdancer/EVENTUM-education-platform/internal/db"
	"github.com/boxdancer/EVENTUM-education-platform/internal/metrics"
	"github.com/boxdancer/EVENTUM-education-platform/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testdb.TerminateShared()
	os.Exit(code)
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []UserRegisteredEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(UserRegisteredEvent))
	return p.err
}

func (p *recordingPublisher) reset(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = nil
	p.events = nil
	p.err = err
}

func setupIntegrationRouter(t *testing.T, store *bun.DB, publisher EventPublisher) *chi.Mux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, publisher, metrics.NewMock(), logger)

	return newTestRouter(t, svc)
}

func TestUserHandler_Shared(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	publisher := &recordingPublisher{}
	router := setupIntegrationRouter(t, pg.DB, publisher)

	const bobBody = `{"name":"Bob","surname":"Sponge","class_number":11,"exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"}`

	t.Run("CreateUser_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		w := post(router, "/user/", bobBody)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.UserID)
		assert.Equal(t, "Bob", resp.Name)
		assert.Equal(t, "Sponge", resp.Surname)
		require.NotNil(t, resp.ClassNumber)
		assert.Equal(t, 11, *resp.ClassNumber)
		require.NotNil(t, resp.ExamType)
		assert.Equal(t, "ЕГЭ", *resp.ExamType)
		assert.Equal(t, "bob2@x.com", resp.Email)
		require.NotNil(t, resp.Telegram)
		assert.Equal(t, "@bob", *resp.Telegram)
		assert.True(t, resp.IsActive)

		var stored User
		err := pg.DB.NewSelect().Model(&stored).Where("user_id = ?", resp.UserID).Scan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, resp, ToResponse(&stored))
	})

	t.Run("CreateUser_StoredRowMatchesResponse", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		w := post(router, "/user/", `{"name":"Bob","surname":"Sponge","class_number":10,"exam_type":"Exam","email":"bob2@x.com","telegram":"bobsponge"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		classNumber := 10
		examType := "Exam"
		telegram := "bobsponge"
		assert.Equal(t, UserResponse{
			UserID:      resp.UserID,
			Name:        "Bob",
			Surname:     "Sponge",
			ClassNumber: &classNumber,
			ExamType:    &examType,
			Email:       "bob2@x.com",
			Telegram:    &telegram,
			IsActive:    true,
		}, resp)

		var stored User
		err := pg.DB.NewSelect().Model(&stored).Where("user_id = ?", resp.UserID).Scan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, resp, ToResponse(&stored))
	})

	t.Run("CreateUser_CyrillicNames", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		w := post(router, "/user", `{"name":"Анна-Мария","surname":"Иванова","class_number":10,"exam_type":"ОГЭ","email":"anna@x.com","telegram":""}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Анна-Мария", resp.Name)
		assert.Equal(t, 1, testdb.CountRows(t, pg.DB, "users"))
	})

	t.Run("CreateUser_DuplicateEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		require.Equal(t, http.StatusOK, post(router, "/user/", bobBody).Code)

		w := post(router, "/user/", bobBody)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"detail":"user with this email already exists"}`, w.Body.String())
		assert.Equal(t, 1, testdb.CountRows(t, pg.DB, "users"))
		assert.Len(t, publisher.events, 1)
	})

	t.Run("CreateUser_InvalidInputWritesNothing", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		bodies := []string{
			`{"name":"B0b","surname":"Sponge","class_number":11,"exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"}`,
			`{"name":"Bob","surname":"Sp0nge","class_number":11,"exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"}`,
			`{"name":"Bob","surname":"Sponge","class_number":11,"exam_type":"ЕГЭ","email":"nope","telegram":"@bob"}`,
			`{"name":"Bob","surname":"Sponge","class_number":11,"exam_type":"ЕГЭ","email":"bob2@x.com"}`,
			`{"name":"Bob"`,
			`{"name":"Bob","surname":"Sponge","class_number":11,"exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"} trailing garbage`,
			`{"name":"Bob","surname":"Sponge","class_number":3000000000,"exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"}`,
			`{"name":"Bob","surname":"Sponge","class_number":"11","exam_type":"ЕГЭ","email":"bob2@x.com","telegram":"@bob"}`,
		}
		for _, body := range bodies {
			w := post(router, "/user/", body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, body)
		}

		assert.Equal(t, 0, testdb.CountRows(t, pg.DB, "users"))
		assert.Empty(t, publisher.events)
	})

	t.Run("CreateUser_PublishesEventAfterCommit", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		w := post(router, "/user/", bobBody)
		require.Equal(t, http.StatusOK, w.Code)

		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		require.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, resp.UserID.String(), publisher.keys[0])
		assert.Equal(t, resp.UserID, event.UserID)
		assert.Equal(t, "bob2@x.com", event.Email)
		assert.False(t, event.RegisteredAt.IsZero())
	})

	t.Run("CreateUser_PublishFailureKeepsUser", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(errors.New("broker down"))

		w := post(router, "/user/", bobBody)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, testdb.CountRows(t, pg.DB, "users"))
	})

	t.Run("CreateUser_WithoutPublisher", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")

		w := post(setupIntegrationRouter(t, pg.DB, nil), "/user/", bobBody)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("CreateUser_ConcurrentDuplicate", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		publisher.reset(nil)

		svc := NewService(pg.DB, publisher, metrics.NewMock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		req := validRequest()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.CreateUser(context.Background(), req)
			}(i)
		}
		wg.Wait()

		var succeeded, conflicted int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrEmailExists):
				conflicted++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, conflicted)
		assert.Equal(t, 1, testdb.CountRows(t, pg.DB, "users"))
	})

	t.Run("Repository_CreateInsideRolledBackSession", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		rollback := errors.New("rollback")

		var created *User
		err := db.WithSession(context.Background(), pg.DB, func(ctx context.Context, tx bun.Tx) error {
			u, err := NewRepository(tx, metrics.NewMock()).Create(ctx, validRequest().Attributes())
			require.NoError(t, err)
			created = u
			return rollback
		})
		assert.ErrorIs(t, err, rollback)

		require.NotNil(t, created)
		assert.NotEqual(t, uuid.Nil, created.UserID)
		assert.True(t, created.IsActive)
		assert.Equal(t, 0, testdb.CountRows(t, pg.DB, "users"))
	})
}
