package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL
	"github.com/razmetka/server/internal/handlers"
	appmiddleware "github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
	"github.com/razmetka/server/internal/services"
	"github.com/razmetka/server/internal/storage"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 30 * time.Second
	minioUseSSL         = false // Для локальной разработки
)

// Подключение к БД вынесено в переменную для подмены в тестах.
var newPostgresDB = repository.NewPostgresDB

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage

	authHandler       *handlers.AuthHandler
	projectHandler    *handlers.ProjectHandler
	imageHandler      *handlers.ImageHandler
	lockHandler       *handlers.LockHandler
	annotationHandler *handlers.AnnotationHandler
	versionHandler    *handlers.VersionHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера Razmetka...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Настройка роутера
	r := setupRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
	log.Printf("Используется сертификат: %s", cfg.CertFile)
	log.Printf("Используется ключ: %s", cfg.KeyFile)

	// Запускаем сервер с TLS
	if err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска HTTPS-сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД
	deps.db, err = newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	// 2. Инициализация клиента MinIO
	minioCfg := storage.MinioConfig{
		Endpoint:        cfg.MinioEndpoint,
		AccessKeyID:     cfg.MinioUser,
		SecretAccessKey: cfg.MinioPassword,
		UseSSL:          minioUseSSL,
		BucketName:      cfg.MinioBucket,
	}
	deps.fileStorage, err = storage.NewMinioClient(minioCfg)
	if err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке MinIO: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 3. Создание репозиториев
	userRepo := repository.NewPostgresUserRepository(deps.db)
	projectRepo := repository.NewPostgresProjectRepository(deps.db)
	imageRepo := repository.NewPostgresImageRepository(deps.db)
	lockRepo := repository.NewPostgresLockRepository()
	annotationRepo := repository.NewPostgresAnnotationRepository()
	versionRepo := repository.NewPostgresVersionRepository()
	snapshotRepo := repository.NewPostgresSnapshotRepository()

	// 4. Создание сервисов
	registry := models.NewTaskRegistry()
	authService := services.NewAuthService(userRepo)
	projectService := services.NewProjectService(projectRepo)
	imageService := services.NewImageService(imageRepo, projectRepo, deps.fileStorage)
	lockService := services.NewLockService(deps.db, lockRepo)
	annotationService := services.NewAnnotationService(deps.db, annotationRepo, lockService, registry)
	versionService := services.NewVersionService(deps.db, versionRepo, snapshotRepo, annotationRepo, registry)
	diffService := services.NewDiffService(deps.db, versionRepo, snapshotRepo, annotationRepo, registry)

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.projectHandler = handlers.NewProjectHandler(projectService)
	deps.imageHandler = handlers.NewImageHandler(imageService)
	deps.lockHandler = handlers.NewLockHandler(lockService)
	deps.annotationHandler = handlers.NewAnnotationHandler(annotationService)
	deps.versionHandler = handlers.NewVersionHandler(versionService, diffService)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход)
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator)

			// Текущий пользователь
			r.Get("/me", deps.authHandler.Me)

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", deps.projectHandler.Create)
				r.Get("/", deps.projectHandler.List)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", deps.projectHandler.Get)
					r.Get("/locks", deps.lockHandler.ListProjectLocks)

					r.Route("/images", func(r chi.Router) {
						r.Post("/", deps.imageHandler.Upload)
						r.Get("/", deps.imageHandler.ListByProject)

						r.Route("/{imageID}", func(r chi.Router) {
							// Блокировка редактирования изображения
							r.Post("/lock", deps.lockHandler.Acquire)
							r.Post("/lock/heartbeat", deps.lockHandler.Heartbeat)
							r.Delete("/lock", deps.lockHandler.Release)
							r.Delete("/lock/force", deps.lockHandler.ForceRelease)
							r.Get("/lock", deps.lockHandler.Status)

							// Аннотации изображения
							r.Get("/annotations", deps.annotationHandler.ListByImage)
							r.Post("/annotations", deps.annotationHandler.Create)
							r.Post("/annotations/batch", deps.annotationHandler.BatchCreate)
						})
					})

					// Версии разметки по типу задачи
					r.Route("/tasks/{taskType}/versions", func(r chi.Router) {
						r.Post("/", deps.versionHandler.Publish)
						r.Get("/", deps.versionHandler.List)
					})
				})
			})

			// Метаданные и содержимое изображений по ID
			r.Route("/images/{imageID}", func(r chi.Router) {
				r.Get("/", deps.imageHandler.Get)
				r.Get("/file", deps.imageHandler.Download)
			})

			// Операции над аннотациями по ID
			r.Route("/annotations", func(r chi.Router) {
				r.Post("/bulk-confirm", deps.annotationHandler.BulkConfirm)

				r.Route("/{annotationID}", func(r chi.Router) {
					r.Put("/", deps.annotationHandler.Update)
					r.Delete("/", deps.annotationHandler.Delete)
					r.Post("/confirm", deps.annotationHandler.Confirm)
					r.Post("/unconfirm", deps.annotationHandler.Unconfirm)
				})
			})

			// Версии и сравнение
			r.Get("/versions/{versionID}", deps.versionHandler.Get)
			r.Get("/diff", deps.versionHandler.Compare)
		})
	})
	return r
}
