package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/razmetka/server/internal/handlers"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock AuthService --- //

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(_ context.Context, username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockAuthService) Login(_ context.Context, username, password string) (string, error) {
	args := m.Called(username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	args := m.Called(id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

// --- Tests --- //

func TestNewAuthHandler(t *testing.T) {
	mockService := new(MockAuthService)
	h := handlers.NewAuthHandler(mockService)
	assert.NotNil(t, h)
}

// Вспомогательная функция для создания роутера с обработчиком.
func setupAuthRouter(h *handlers.AuthHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/me", h.Me)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		mockUsername    string
		mockPassword    string
		mockReturnError error
		expectedStatus  int
		expectedBody    string // Проверяем подстроку в теле ответа
	}{
		{
			name:            "Успешная регистрация",
			body:            `{"username": "testuser", "password": "password123"}`,
			mockUsername:    "testuser",
			mockPassword:    "password123",
			mockReturnError: nil,
			expectedStatus:  http.StatusCreated,
		},
		{
			name:           "Невалидный JSON",
			body:           `{"username": "testuser", "password": "password123"`, // Сломанный JSON
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Неверный формат запроса",
		},
		{
			name:           "Пустой username",
			body:           `{"username": "", "password": "password123"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:           "Пустой password",
			body:           `{"username": "testuser", "password": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:            "Имя пользователя занято",
			body:            `{"username": "existinguser", "password": "password123"}`,
			mockUsername:    "existinguser",
			mockPassword:    "password123",
			mockReturnError: services.ErrUsernameTaken, // Ошибка от сервиса
			expectedStatus:  http.StatusConflict,
			expectedBody:    "Имя пользователя уже занято",
		},
		{
			name:            "Внутренняя ошибка сервера",
			body:            `{"username": "erroruser", "password": "password123"}`,
			mockUsername:    "erroruser",
			mockPassword:    "password123",
			mockReturnError: errors.New("some internal error"), // Другая ошибка
			expectedStatus:  http.StatusInternalServerError,
			expectedBody:    "Внутренняя ошибка сервера",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAuthService)
			h := handlers.NewAuthHandler(mockService)
			r := setupAuthRouter(h)

			// Настраиваем мок только если ожидается вызов сервиса
			if tt.mockUsername != "" || tt.mockPassword != "" {
				mockService.On("Register", tt.mockUsername, tt.mockPassword).Return(tt.mockReturnError).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tt.expectedBody)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("Данные текущего пользователя", func(t *testing.T) {
		mockService := new(MockAuthService)
		r := setupAuthRouter(handlers.NewAuthHandler(mockService))

		mockService.On("GetUserByID", int64(42)).
			Return(&models.User{ID: 42, Username: "annotator"}, nil).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, authedRequest(http.MethodGet, "/me", 42))

		assert.Equal(t, http.StatusOK, rr.Code)
		var u models.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &u))
		assert.Equal(t, int64(42), u.ID)
		assert.Equal(t, "annotator", u.Username)
		// Хеш пароля не должен попадать в ответ
		assert.NotContains(t, rr.Body.String(), "password_hash")
		mockService.AssertExpectations(t)
	})

	t.Run("Пользователь из токена не найден - 404", func(t *testing.T) {
		mockService := new(MockAuthService)
		r := setupAuthRouter(handlers.NewAuthHandler(mockService))

		mockService.On("GetUserByID", int64(404)).
			Return(nil, services.ErrUserNotFound).Once()

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, authedRequest(http.MethodGet, "/me", 404))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Без пользователя в контексте - 500", func(t *testing.T) {
		mockService := new(MockAuthService)
		r := setupAuthRouter(handlers.NewAuthHandler(mockService))

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertNotCalled(t, "GetUserByID", mock.Anything)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		mockUsername    string
		mockPassword    string
		mockReturnToken string
		mockReturnError error
		expectedStatus  int
		expectedBody    string // Проверяем подстроку
		expectedToken   string // Ожидаемый токен в JSON ответе
	}{
		{
			name:            "Успешный вход",
			body:            `{"username": "testuser", "password": "password123"}`,
			mockUsername:    "testuser",
			mockPassword:    "password123",
			mockReturnToken: "fake-jwt-token",
			mockReturnError: nil,
			expectedStatus:  http.StatusOK,
			expectedToken:   "fake-jwt-token",
		},
		{
			name:           "Невалидный JSON",
			body:           `{"username": "testuser", "password": "password123"`, // Сломанный JSON
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Неверный формат запроса",
		},
		{
			name:           "Пустой username",
			body:           `{"username": "", "password": "password123"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:           "Пустой password",
			body:           `{"username": "testuser", "password": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:            "Неверные креды",
			body:            `{"username": "wronguser", "password": "wrongpassword"}`,
			mockUsername:    "wronguser",
			mockPassword:    "wrongpassword",
			mockReturnError: services.ErrInvalidCredentials, // Ошибка от сервиса
			expectedStatus:  http.StatusUnauthorized,
			expectedBody:    "Неверное имя пользователя или пароль",
		},
		{
			name:            "Внутренняя ошибка сервера",
			body:            `{"username": "erroruser", "password": "password123"}`,
			mockUsername:    "erroruser",
			mockPassword:    "password123",
			mockReturnError: errors.New("some internal error"), // Другая ошибка
			expectedStatus:  http.StatusInternalServerError,
			expectedBody:    "Внутренняя ошибка сервера",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAuthService)
			h := handlers.NewAuthHandler(mockService)
			r := setupAuthRouter(h)

			// Настраиваем мок только если ожидается вызов сервиса
			if tt.mockUsername != "" || tt.mockPassword != "" {
				mockService.On("Login", tt.mockUsername, tt.mockPassword).Return(tt.mockReturnToken, tt.mockReturnError).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedToken != "" {
				var resp models.LoginResponse
				err := json.Unmarshal(rr.Body.Bytes(), &resp)
				require.NoError(t, err, "Ошибка декодирования JSON ответа")
				assert.Equal(t, tt.expectedToken, resp.Token)
			} else if tt.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tt.expectedBody)
			}

			mockService.AssertExpectations(t)
		})
	}
}
