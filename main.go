package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sarafan/internal/allocator"
	"sarafan/internal/api"
	"sarafan/internal/config"
	"sarafan/internal/crm"
	"sarafan/internal/db"
	"sarafan/internal/formatters"
	"sarafan/internal/handlers"
	"sarafan/internal/importer"
	"sarafan/internal/messaging"
	"sarafan/internal/reports"
	"sarafan/internal/session"
	"sarafan/internal/telegram_api"
)

func main() {
	// --- Блок инициализации ---
	if err := godotenv.Load(); err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Критическая ошибка: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sarafan",
		Short:        "Бот реферальной программы партнеров",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Запустить webhook-сервер и Telegram-бота",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Создать таблицы и настройки по умолчанию",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			log.Println("Миграция базы данных завершена.")
			return nil
		},
	})

	var importFile string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Загрузить каталог партнеров из таблицы",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			weights := allocator.NewWeightPolicy(store)
			var src importer.Source
			if importFile != "" {
				src = importer.XLSXSource{Path: importFile, SkipHeader: true}
			} else if src, err = newCatalogSource(ctx, cfg); err != nil {
				return err
			}
			res, err := importer.New(store, weights, src).Refresh(ctx)
			if err != nil {
				return err
			}
			log.Printf("Импорт завершен: загружено %d, пропущено %d", res.Imported, res.Skipped)
			return nil
		},
	}
	importCmd.Flags().StringVar(&importFile, "file", "", "путь к xlsx-файлу (по умолчанию источник из конфигурации)")
	root.AddCommand(importCmd)

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Выгрузить статистику партнеров в xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			partners, err := store.ListAllPartners(ctx)
			if err != nil {
				return err
			}
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("не удалось создать файл %s: %w", exportOut, err)
			}
			defer f.Close()
			if err := reports.WritePartnerStats(f, partners); err != nil {
				return err
			}
			log.Printf("Статистика %d партнеров сохранена в %s", len(partners), exportOut)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&exportOut, "out", "partner_stats.xlsx", "файл для выгрузки")
	root.AddCommand(exportCmd)

	return root
}

// openStore загружает конфигурацию, подключается к базе и применяет миграции.
func openStore(ctx context.Context) (*config.Config, *db.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	store, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось инициализировать базу данных: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := store.SeedDefaults(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return cfg, store, nil
}

// newCatalogSource выбирает источник каталога: локальный xlsx или Google Sheets.
func newCatalogSource(ctx context.Context, cfg *config.Config) (importer.Source, error) {
	switch {
	case cfg.PartnersXLSXPath != "":
		return importer.XLSXSource{Path: cfg.PartnersXLSXPath, SkipHeader: true}, nil
	case cfg.SheetID != "":
		src, err := importer.NewSheetsSource(ctx, cfg.ServiceAccountFile, cfg.SheetID, cfg.SheetRange)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, nil
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	weights := allocator.NewWeightPolicy(store)
	if err := weights.Refresh(ctx); err != nil {
		return fmt.Errorf("не удалось загрузить настройки весов: %w", err)
	}

	src, err := newCatalogSource(ctx, cfg)
	if err != nil {
		log.Printf("Предупреждение: источник каталога недоступен: %v", err)
	}

	var sender messaging.Sender = messaging.LogSender{}
	if cfg.OutboundURL != "" {
		sender = messaging.NewHTTPSender(cfg.OutboundURL, cfg.OutboundToken, nil)
	}

	handlerDeps := handlers.HandlerDependencies{
		Config:         cfg,
		Store:          store,
		Allocator:      allocator.New(store, store, weights),
		Templates:      formatters.NewResolver(store),
		Sender:         sender,
		CRM:            crm.LogClient{},
		SessionManager: session.NewSessionManager(),
		Refresher:      importer.New(store, weights, src),
	}

	var botClient *telegram_api.BotClient
	if cfg.TelegramToken != "" {
		botClient, err = telegram_api.InitBot(cfg.TelegramToken, cfg.AppEnv == "dev")
		if err != nil {
			return fmt.Errorf("не удалось инициализировать Telegram бота: %w", err)
		}
		handlerDeps.Notifier = botClient
		handlerDeps.Documents = botClient
	} else {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не задан, оповещения партнеров отключены.")
	}

	botHandler := handlers.NewBotHandler(handlerDeps)

	// --- Настройка роутера и Middleware ---
	apiRouter := chi.NewRouter()

	// ГЛОБАЛЬНЫЕ MIDDLEWARES ДОЛЖНЫ ИДТИ ПЕРЕД api.SetupRoutes
	apiRouter.Use(middleware.Logger)
	apiRouter.Use(middleware.Recoverer)
	apiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", api.SignatureHeader},
		MaxAge:         300,
	}))

	api.SetupRoutes(apiRouter, api.ApiDependencies{
		Config:     cfg,
		Dispatcher: botHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем HTTP-сервер в отдельной горутине
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Запуск HTTP-сервера на порту %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if botClient != nil {
		go runTelegramUpdates(ctx, botClient, botHandler)
	}

	log.Println("Бот и webhook-сервер запущены и готовы к работе...")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер: %w", err)
	}

	log.Println("Получен сигнал завершения, останавливаем сервер...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке HTTP-сервера: %v", err)
	}
	botHandler.Wait()
	return nil
}

func runTelegramUpdates(ctx context.Context, botClient *telegram_api.BotClient, botHandler *handlers.BotHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botClient.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil && update.Message.From != nil {
				log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
			}
			go botHandler.HandleTelegramUpdate(ctx, update)
		}
	}
}
